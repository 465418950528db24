package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"gatepass/common/constant"
	commonJetstream "gatepass/common/jetstream"
	"gatepass/common/otel"
	"gatepass/inbound/event"
	"gatepass/outbound/store"
)

func runQueuePaymentCmd(ctx context.Context) {
	cfg := newCfg("env")

	shutdownTracer, err := otel.InitTracer(ctx, cfg)
	if err != nil {
		log.Fatalln("failed to init tracer", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := shutdownTracer(shutdownCtx)
		if err != nil {
			slog.Error("failed to shutdown tracer", slog.Any("error", err))
		}
	}()

	if cfg.GetString("env") == "dev" {
		cpu, err := os.Create("payment-cpu.prof")
		if err != nil {
			log.Fatalf("could not create CPU profile: %v", err)
		}
		defer cpu.Close()

		err = pprof.StartCPUProfile(cpu)
		if err != nil {
			log.Fatalf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()

		mem, err := os.Create("payment-mem.prof")
		if err != nil {
			log.Fatalf("could not create memory profile: %v", err)
		}
		defer mem.Close()

		err = pprof.WriteHeapProfile(mem)
		if err != nil {
			log.Fatalf("could not write memory profile: %v", err)
		}
		defer mem.Close()
	}

	db := newDb(cfg)
	defer db.Close()

	querier := store.New(db)

	natsConn := newNats(cfg)
	defer natsConn.Close()

	js := newJs(natsConn)
	commonJetstream.CreateQueueStream(ctx, js)

	st, err := js.Stream(ctx, constant.QueueStreamName)
	if err != nil {
		log.Fatalln("failed to get stream", err)
	}

	paymentEvent := event.PaymentEvent{
		Querier:   querier,
		Publisher: js,
		Timeout:   cfg.GetDuration("queue.payment.timeout"),
	}

	cons, err := st.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       "consumer:payment",
		FilterSubject: constant.PaymentWildcard,
		MaxDeliver:    cfg.GetInt("queue.payment.max_deliver"),
		AckWait:       cfg.GetDuration("queue.payment.ack_wait"),
	})
	if err != nil {
		log.Fatalln("failed to create consumer", err)
	}

	iter, err := cons.Messages()
	if err != nil {
		panic(err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := iter.Next()
				if err != nil && err != jetstream.ErrMsgIteratorClosed {
					slog.ErrorContext(ctx, "Error fetching message", slog.Any(constant.LogFieldErr, err))
					continue
				}

				if msg == nil {
					continue
				}

				var eventErr error
				switch msg.Subject() {
				case constant.SubjectPaymentCallback:
					eventErr = paymentEvent.CallbackHandler(ctx, msg.Data())
				}

				if eventErr != nil {
					msg.NakWithDelay(1 * time.Second)
					continue
				}

				if err := msg.Ack(); err != nil {
					slog.ErrorContext(ctx, "Error acknowledging message",
						slog.Any(constant.LogFieldErr, err),
						slog.Any(constant.LogFieldPayload, string(msg.Data())),
						slog.String("subject", msg.Subject()),
					)
					continue
				}
			}
		}
	}()

	slog.InfoContext(ctx, "payment queue consumer started")

	<-ctx.Done()

	iter.Stop()

	slog.InfoContext(ctx, "payment queue consumer stopped")
}
