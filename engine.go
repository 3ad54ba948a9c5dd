package tenauth

import (
	"context"
	"sync"
	"time"

	"github.com/tenantkit/tenauth/internal/audit"
	"github.com/tenantkit/tenauth/internal/logging"
	"github.com/tenantkit/tenauth/password"
	"github.com/tenantkit/tenauth/permission"
	"github.com/tenantkit/tenauth/token"
)

// Engine is the authentication and authorization façade. Construct one with
// [New] and its builder methods, then call Build. All methods are safe for
// concurrent use.
type Engine struct {
	config Config

	stores    Stores
	codec     *token.Codec
	hasher    *password.Hasher
	evaluator *permission.Evaluator

	logger  logging.Logger
	metrics *Metrics
	auditor *audit.Dispatcher
	notify  *notifyDispatcher

	// now is the clock. Tests replace it.
	now func() time.Time

	built     bool
	closeOnce sync.Once
}

func (e *Engine) ready() error {
	if e == nil || !e.built {
		return ErrEngineNotReady
	}
	return nil
}

// Close flushes the audit and notification dispatchers and marks the engine
// unusable. Close is idempotent.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.closeOnce.Do(func() {
		e.built = false
		if e.auditor != nil {
			e.auditor.Close()
		}
		if e.notify != nil {
			e.notify.close()
		}
	})
	return nil
}

// MetricsSnapshot returns a copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatch queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e.auditor == nil {
		return 0
	}
	return e.auditor.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// emitAudit queues one audit event. Best effort: a full queue drops the
// event and bumps the dispatcher's drop counter.
func (e *Engine) emitAudit(ctx context.Context, eventType, userID, orgID string, success bool, failure error) {
	if e.auditor == nil {
		return
	}
	ev := audit.Event{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		OrgID:     orgID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		ev.Error = failure.Error()
	}
	e.auditor.Emit(ctx, ev)
}
