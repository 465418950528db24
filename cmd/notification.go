package cmd

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"gatepass/common/constant"
	commonJetstream "gatepass/common/jetstream"
	"gatepass/common/otel"
	"gatepass/inbound/event"
)

func runQueueNotificationCmd(ctx context.Context) {
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

	natsConn := newNats(cfg)
	defer natsConn.Close()

	js := newJs(natsConn)
	commonJetstream.CreateQueueStream(ctx, js)

	st, err := js.Stream(ctx, constant.QueueStreamName)
	if err != nil {
		log.Fatalln("failed to get stream", err)
	}

	notificationEvent := event.NotificationEvent{
		Publisher:         js,
		CurrencyFormatter: message.NewPrinter(language.English),
		Timeout:           cfg.GetDuration("queue.notification.timeout"),
	}

	cons, err := st.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       "consumer:notification",
		FilterSubject: constant.NotificationWildcard,
		MaxDeliver:    cfg.GetInt("queue.notification.max_deliver"),
		AckWait:       cfg.GetDuration("queue.notification.ack_wait"),
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
				case constant.SubjectRegistrationConfirmed:
					eventErr = notificationEvent.RegistrationConfirmedHandler(ctx, msg.Data())
				case constant.SubjectPaymentSucceeded:
					eventErr = notificationEvent.PaymentSucceededHandler(ctx, msg.Data())
				case constant.SubjectAttendeeValidated:
					eventErr = notificationEvent.AttendeeValidatedHandler(ctx, msg.Data())
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

	slog.InfoContext(ctx, "notification queue consumer started")

	<-ctx.Done()

	iter.Stop()

	slog.InfoContext(ctx, "notification queue consumer stopped")
}
