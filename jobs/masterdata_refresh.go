package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerdesk/internal/masterdata"
	jobmetrics "github.com/odyssey-erp/ledgerdesk/internal/jobs"
)

// MasterdataCache is the part of masterdata.Service the refresh job drives.
type MasterdataCache interface {
	Refresh(ctx context.Context) error
	Bundle(ctx context.Context, token string, withItems bool) (masterdata.Bundle, error)
}

// MasterdataRefreshJob invalidates the master data cache and warms it again.
type MasterdataRefreshJob struct {
	Cache   MasterdataCache
	Token   string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewMasterdataRefreshJob wires dependencies for the refresh handler.
func NewMasterdataRefreshJob(cache MasterdataCache, token string, logger *slog.Logger, metrics *jobmetrics.Metrics) *MasterdataRefreshJob {
	return &MasterdataRefreshJob{Cache: cache, Token: token, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes TaskMasterdataRefresh tasks.
func (j *MasterdataRefreshJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Cache == nil {
		return errors.New("masterdata refresh: handler not configured")
	}
	tracker := j.metrics().Track(TaskMasterdataRefresh)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	if err := j.Cache.Refresh(ctx); err != nil {
		logger.Error("bump masterdata cache", slog.Any("error", err))
		return err
	}
	if j.Token == "" {
		logger.Info("masterdata cache dropped; no service token to warm it")
		return nil
	}

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	bundle, err := j.Cache.Bundle(warmCtx, j.Token, true)
	if err != nil {
		logger.Error("warm masterdata cache", slog.Any("error", err))
		return err
	}
	j.metrics().Warmed(len(bundle.Accounts), len(bundle.Parties), len(bundle.Items))
	logger.Info("masterdata cache warmed",
		slog.Int("accounts", len(bundle.Accounts)),
		slog.Int("parties", len(bundle.Parties)),
		slog.Int("items", len(bundle.Items)),
		slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *MasterdataRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMasterdataRefresh))
	}
	return slog.Default().With(slog.String("job", TaskMasterdataRefresh))
}

func (j *MasterdataRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MasterdataRefreshJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
