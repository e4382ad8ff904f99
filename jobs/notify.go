package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerdesk/internal/erpapi"
	"github.com/odyssey-erp/ledgerdesk/internal/forms"
	jobmetrics "github.com/odyssey-erp/ledgerdesk/internal/jobs"
	"github.com/odyssey-erp/ledgerdesk/internal/platform/httpx"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NotificationSender delivers notifications to the ERP backend.
type NotificationSender interface {
	Notify(ctx context.Context, token string, n erpapi.Notification) error
}

// NotifyJob forwards posted-document events to the notification service.
type NotifyJob struct {
	Sender  NotificationSender
	Token   string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotifyJob wires dependencies for the notification handler. token is the service
// credential used against the ERP backend.
func NewNotifyJob(sender NotificationSender, token string, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyJob {
	return &NotifyJob{Sender: sender, Token: token, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDocumentPosted tasks.
func (j *NotifyJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Sender == nil {
		return errors.New("notify: handler not configured")
	}
	var ev forms.PostedEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskDocumentPosted)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("document", ev.Document), slog.Int64("id", ev.ID))
	n := erpapi.Notification{
		Event:    "document.posted",
		Document: ev.Document,
		Ref:      ev.Ref,
		Message:  fmt.Sprintf("%s %s posted for %s", ev.Document, ev.Ref, ev.Amount),
		Meta: map[string]any{
			"id":        ev.ID,
			"amount":    ev.Amount,
			"finyearid": ev.FinancialYearID,
			"posted_at": ev.PostedAt,
		},
	}
	if err := j.Sender.Notify(ctx, j.Token, n); err != nil {
		logger.Error("deliver notification", slog.Any("error", err))
		// Rejected payloads will not succeed on retry.
		if errors.Is(err, httpx.ErrValidation) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	j.metrics().Notified(ev.Document)
	logger.Info("notification delivered")
	return nil
}

func (j *NotifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDocumentPosted))
	}
	return slog.Default().With(slog.String("job", TaskDocumentPosted))
}

func (j *NotifyJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
