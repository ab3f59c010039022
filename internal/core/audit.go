package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type actorKey struct{}

// systemActor is recorded when no caller identity is attached to the context.
const systemActor = "system"

// WithActor attaches the identity of the caller performing mutations.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller identity attached by WithActor, or "system".
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return systemActor
}

// AuditRecord describes one committed mutation with its before/after state.
// Before is nil for creations.
type AuditRecord struct {
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID int       `json:"entity_id"`
	Actor    string    `json:"actor"`
	Reason   string    `json:"reason,omitempty"`
	Before   any       `json:"before,omitempty"`
	After    any       `json:"after,omitempty"`
	At       time.Time `json:"at"`
}

// AuditSink receives audit records after the owning transaction commits.
// Storage is owned by the implementation; a failing sink never undoes a commit.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord)
}

type nopAuditSink struct{}

func (nopAuditSink) Record(context.Context, AuditRecord) {}

// NopAuditSink discards every record.
func NopAuditSink() AuditSink { return nopAuditSink{} }

type logAuditSink struct {
	logger *logrus.Logger
}

// NewLogAuditSink writes audit records as structured log entries.
func NewLogAuditSink(logger *logrus.Logger) AuditSink {
	return &logAuditSink{logger: logger}
}

func (s *logAuditSink) Record(_ context.Context, rec AuditRecord) {
	s.logger.WithFields(logrus.Fields{
		"audit":     true,
		"action":    rec.Action,
		"entity":    rec.Entity,
		"entity_id": rec.EntityID,
		"actor":     rec.Actor,
		"reason":    rec.Reason,
		"before":    rec.Before,
		"after":     rec.After,
	}).Info("audit")
}

func audit(ctx context.Context, sink AuditSink, action, entity string, id int, reason string, before, after any) {
	if sink == nil {
		return
	}
	sink.Record(ctx, AuditRecord{
		Action:   action,
		Entity:   entity,
		EntityID: id,
		Actor:    ActorFrom(ctx),
		Reason:   reason,
		Before:   before,
		After:    after,
		At:       time.Now().UTC(),
	})
}
