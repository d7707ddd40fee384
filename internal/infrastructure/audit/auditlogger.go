package audit

import (
	"context"
	"sync"

	"fileharbor/internal/application/billing/usecases"
	"fileharbor/internal/shared/goroutine"
	"fileharbor/internal/shared/logger"
)

// LogAuditLogger emits audit records as structured log entries. Record is
// fire-and-forget: writes happen off the caller's goroutine and a slow or
// failing sink never blocks subscription processing.
type LogAuditLogger struct {
	logger logger.Interface
	wg     sync.WaitGroup
}

func NewLogAuditLogger(baseLogger logger.Interface) *LogAuditLogger {
	return &LogAuditLogger{
		logger: baseLogger.With("component", "audit"),
	}
}

func (l *LogAuditLogger) Record(ctx context.Context, entry usecases.AuditEntry) {
	l.wg.Add(1)
	goroutine.SafeGo(l.logger, "audit.record", func() {
		defer l.wg.Done()
		l.write(entry)
	})
}

func (l *LogAuditLogger) write(entry usecases.AuditEntry) {
	fields := []any{
		"action", entry.Action,
		"subscription_id", entry.SubscriptionID,
		"user_id", entry.UserID,
		"source", entry.Source,
		"outcome", entry.Outcome,
	}
	for k, v := range entry.Details {
		fields = append(fields, "detail_"+k, v)
	}
	l.logger.Infow("audit event", fields...)
}

// Flush waits for all in-flight audit records to be written. Intended for
// graceful shutdown.
func (l *LogAuditLogger) Flush() {
	l.wg.Wait()
}
