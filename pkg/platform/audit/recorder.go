package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"govdash/pkg/domain"
	"govdash/pkg/requestcontext"
)

// Emitter accepts audit events for persistence.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Recorder is the single entry point services use to leave an audit trail.
// Record never fails the caller: emit errors are logged and counted.
type Recorder struct {
	emitter Emitter
	logger  *slog.Logger
	metrics *Metrics
}

type RecorderOption func(*Recorder)

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithRecorderMetrics(m *Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func NewRecorder(emitter Emitter, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		emitter: emitter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one audit event for the action. A nil Recorder is a no-op.
func (r *Recorder) Record(ctx context.Context, actor domain.Actor, action AuditEvent, entity EntityRef, outcome Outcome) {
	r.RecordReason(ctx, actor, action, entity, outcome, "")
}

// RecordReason is Record with a reason (matched rule, error code or
// transition reason code) attached.
func (r *Recorder) RecordReason(ctx context.Context, actor domain.Actor, action AuditEvent, entity EntityRef, outcome Outcome, reason string) {
	if r == nil || r.emitter == nil {
		return
	}

	event := Event{
		ID:         uuid.New(),
		Category:   CategoryFor(string(action), outcome),
		Timestamp:  requestcontext.Now(ctx),
		ActorRole:  string(actor.Role),
		Action:     string(action),
		EntityType: entity.Type,
		EntityID:   entity.ID,
		Outcome:    outcome,
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		Client:     DescribeClient(requestcontext.UserAgent(ctx)),
	}
	if !actor.IsAnonymous() {
		event.ActorID = actor.ID.String()
	}

	if err := r.emitter.Emit(ctx, event); err != nil {
		r.metrics.IncFailed()
		r.logger.ErrorContext(ctx, "audit record failed",
			"action", event.Action,
			"entity", entity.String(),
			"outcome", string(outcome),
			"error", err,
			"request_id", event.RequestID,
		)
		return
	}
	r.metrics.IncRecorded(event.Category)
}

// DescribeClient reduces a raw User-Agent header to "Browser version (OS)".
func DescribeClient(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if ua.Bot() {
		return "bot: " + name
	}
	if name == "" {
		return ""
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s %s (%s)", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}

// Fanout appends every event to all stores. A failing sink does not prevent
// the others from receiving the event; the failure is a *FanoutError.
func Fanout(stores ...Store) Store {
	return fanout(stores)
}

// FanoutError reports the stores that rejected an event. Appending to
// Remaining retries only those.
type FanoutError struct {
	Remaining Store
	Err       error
}

func (e *FanoutError) Error() string { return e.Err.Error() }

func (e *FanoutError) Unwrap() error { return e.Err }

type fanout []Store

func (f fanout) Append(ctx context.Context, event Event) error {
	var (
		errs   []error
		failed fanout
	)
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
			failed = append(failed, s)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &FanoutError{Remaining: failed, Err: errors.Join(errs...)}
}

// ListByEntity reads from the first store able to serve reads.
func (f fanout) ListByEntity(ctx context.Context, ref EntityRef) ([]Event, error) {
	for _, s := range f {
		if r, ok := s.(Reader); ok {
			return r.ListByEntity(ctx, ref)
		}
	}
	return nil, errors.New("no readable audit store configured")
}
