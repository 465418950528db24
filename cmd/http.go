package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"runtime/pprof"
	"time"

	"github.com/go-playground/validator/v10"

	commonJetstream "gatepass/common/jetstream"
	"gatepass/common/otel"
	inboundCron "gatepass/inbound/cron"
	inboundHttp "gatepass/inbound/http"
	"gatepass/outbound/storage"
	"gatepass/outbound/store"
	"gatepass/similarity"
)

func runHttpServerCmd(ctx context.Context) {
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
		cpu, err := os.Create("http-cpu.prof")
		if err != nil {
			log.Fatalf("could not create CPU profile: %v", err)
		}
		defer cpu.Close()

		err = pprof.StartCPUProfile(cpu)
		if err != nil {
			log.Fatalf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()

		mem, err := os.Create("http-mem.prof")
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

	validate := validator.New()

	db := newDb(cfg)
	defer db.Close()

	cacheClient := newRedis(cfg)
	defer cacheClient.Close()

	natsConn := newNats(cfg)
	defer natsConn.Close()

	js := newJs(natsConn)
	commonJetstream.CreateQueueStream(ctx, js)

	querier := store.New(db)

	files := storage.LocalFileStore{Root: cfg.GetString("storage.root")}

	thresholds := similarity.DefaultThresholds
	if v := cfg.GetFloat64("similarity.auto_approve"); v > 0 {
		thresholds.AutoApprove = v
	}
	if v := cfg.GetFloat64("similarity.manual_review"); v > 0 {
		thresholds.ManualReview = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		slog.DebugContext(r.Context(), "health check")
		w.WriteHeader(http.StatusOK)
	})

	timeoutMiddleware := inboundHttp.TimeoutMiddleware(20 * time.Second)

	inboundHttp.RegisterEventHttp(mux)
	inboundHttp.RegisterRegistrationHttp(mux, querier, cacheClient, js, validate)
	inboundHttp.RegisterTicketHttp(mux, querier, cacheClient, js, validate)
	inboundHttp.RegisterValidationHttp(mux, querier, cacheClient, js, validate, files, thresholds,
		cfg.GetDuration("validation.confirm_token_ttl"))
	inboundHttp.RegisterPaymentHttp(mux, querier, js, validate)

	eventCron := &inboundCron.EventCron{
		Cfg:     cfg,
		Cache:   cacheClient,
		Querier: querier,
	}

	err = eventCron.InitCapacityCache(ctx)
	if err != nil {
		log.Fatalln("unable to init capacity cache", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.GetInt("server.port")),
		Handler:           timeoutMiddleware(inboundHttp.CorsMiddleware(mux)),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalln("unable to start server", err)
		}
	}()

	slog.Info("http server started")

	go func() {
		eventCron.Start(ctx)
	}()

	<-ctx.Done()

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutDown); err != nil {
		log.Fatalln("unable to shutdown server", err)
	}

	slog.Info("http server stopped")
}
