package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.avinoo.ir/sso/domain"
)

// Recorder appends events to the SSO audit trail. Recording never fails the
// operation being audited.
type Recorder interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

// LogRecorder writes audit events to the structured log only. Used when no
// audit repository is configured.
type LogRecorder struct{}

// NewLogRecorder creates a LogRecorder.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Record writes the event as a structured log line.
func (r *LogRecorder) Record(ctx context.Context, event *domain.AuditEvent) {
	stamp(event)
	logEvent(ctx, event)
}

// RepositoryRecorder persists audit events to a repository, falling back to
// the structured log when the write fails.
type RepositoryRecorder struct {
	repo domain.AuditLogRepository
}

// NewRepositoryRecorder creates a RepositoryRecorder.
func NewRepositoryRecorder(repo domain.AuditLogRepository) *RepositoryRecorder {
	return &RepositoryRecorder{repo: repo}
}

// Record stores the event. A storage failure is logged together with the
// event itself so the trail survives in the log stream.
func (r *RepositoryRecorder) Record(ctx context.Context, event *domain.AuditEvent) {
	stamp(event)
	if err := r.repo.StoreEvent(ctx, event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to store audit event")
		logEvent(ctx, event)
	}
}

func stamp(event *domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
}

func logEvent(ctx context.Context, event *domain.AuditEvent) {
	log.Ctx(ctx).Info().
		Str("audit_id", event.ID).
		Str("user_id", event.UserID).
		Str("client_id", event.ClientID).
		Str("action", string(event.Action)).
		Str("ip_address", event.IPAddress).
		Bool("success", event.Success).
		Interface("details", event.Details).
		Msg("audit event")
}
