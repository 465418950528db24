package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"gatepass/common"
	"gatepass/common/constant"
	"gatepass/common/vars"
	"gatepass/outbound/store"
)

type EventCron struct {
	Cfg     *viper.Viper
	Cache   *redis.Client
	Querier *store.Queries
}

func (in EventCron) Start(ctx context.Context) {
	refreshTicker := time.NewTicker(in.Cfg.GetDuration("cron.event.refresh.interval"))
	defer refreshTicker.Stop()

	// Run initial refresh
	in.refresh(ctx)

	slog.Info("event cron started")

	// Block in the main function, not in a goroutine
	for {
		select {
		case <-refreshTicker.C:
			in.refresh(ctx)
		case <-ctx.Done():
			slog.Info("event cron stopped")
			return
		}
	}
}

// refresh reloads the open-event snapshot that backs form rendering. The
// database is authoritative; the snapshot may briefly lag attendee counts.
func (in EventCron) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, in.Cfg.GetDuration("cron.event.refresh.timeout"))
	defer cancel()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	slog.DebugContext(ctx, "refreshing events", traceIdAttr)

	events, err := in.Querier.FindOpenEvents(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find open events", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return
	}

	vars.SetEvents(events)

	slog.DebugContext(ctx, "events refreshed successfully", traceIdAttr)
}

// InitCapacityCache seeds the per-event capacity counters the registration
// handler decrements. SetNX keeps an already-running counter authoritative
// across restarts.
func (in EventCron) InitCapacityCache(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	events, err := in.Querier.FindOpenEvents(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find open events", slog.Any(constant.LogFieldErr, err))
		return fmt.Errorf("find open events: %w", err)
	}

	if len(events) == 0 {
		slog.InfoContext(ctx, "no open events found to initialize")
		return nil
	}

	pipe := in.Cache.TxPipeline()
	for _, ev := range events {
		remaining := ev.MaxAttendees - ev.AttendeeCount
		if remaining < 0 {
			remaining = 0
		}
		pipe.SetNX(ctx, fmt.Sprintf(constant.EventCapacityKey, ev.ID), remaining, 0)
	}

	if _, err = pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to initialize event capacities in cache", slog.Any(constant.LogFieldErr, err))
		return fmt.Errorf("execute pipeline: %w", err)
	}

	slog.InfoContext(ctx, "event capacities initialized successfully")
	return nil
}
