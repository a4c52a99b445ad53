// Package maintenance runs the retention sweep: prune messages older than
// the configured age, then rebuild the vector index so semantic search never
// serves positions for deleted records.
package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/fitcoach-platform/fitcoach/internal/config"
	"github.com/fitcoach-platform/fitcoach/internal/conversation"
	fcnats "github.com/fitcoach-platform/fitcoach/internal/nats"
	"github.com/fitcoach-platform/fitcoach/internal/retrieval"
)

// AuditPublisher records maintenance activity on the audit subject.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, event fcnats.AuditEvent) error
}

type Runner struct {
	store  conversation.Store
	engine *retrieval.Engine
	audit  AuditPublisher
	cfg    config.MaintenanceConfig
}

// NewRunner builds a runner. audit may be nil; sweeps then run unaudited.
func NewRunner(store conversation.Store, engine *retrieval.Engine, audit AuditPublisher, cfg config.MaintenanceConfig) *Runner {
	return &Runner{store: store, engine: engine, audit: audit, cfg: cfg}
}

// Start runs the scheduled sweep until the context ends. When a NATS client
// is provided, it also consumes out-of-schedule prune and rebuild requests.
func (r *Runner) Start(ctx context.Context, client *fcnats.Client) {
	go r.runScheduled(ctx)
	if client != nil {
		go r.consumeRequests(ctx, client)
	}
}

func (r *Runner) runScheduled(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep prunes and rebuilds once. Safe to call concurrently with searches;
// the index swap is atomic.
func (r *Runner) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.cfg.RetentionDays)

	removed, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("retention prune failed", "error", err)
		r.publishAudit(ctx, "error", fmt.Sprintf("retention prune failed: %v", err))
		return
	}

	if err := r.engine.Rebuild(ctx); err != nil {
		slog.Error("index rebuild after prune failed", "removed", removed, "error", err)
		r.publishAudit(ctx, "error",
			fmt.Sprintf("index rebuild after pruning %d messages failed: %v", removed, err))
		return
	}
	slog.Info("retention sweep completed", "removed", removed, "retention_days", r.cfg.RetentionDays)
	r.publishAudit(ctx, "info",
		fmt.Sprintf("retention sweep removed %d messages older than %d days", removed, r.cfg.RetentionDays))
}

func (r *Runner) publishAudit(ctx context.Context, severity, details string) {
	if r.audit == nil {
		return
	}
	event := fcnats.AuditEvent{
		EventType: "retention_sweep",
		Severity:  severity,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if err := r.audit.PublishAudit(ctx, event); err != nil {
		slog.Warn("publishing audit event failed", "error", err)
	}
}

func (r *Runner) consumeRequests(ctx context.Context, client *fcnats.Client) {
	cm := fcnats.NewConsumerManager(client.JetStream())
	consumer, err := cm.EnsureConsumer(ctx, fcnats.StreamMaintenance, "maintenance-runner", "fitcoach.maintenance.>")
	if err != nil {
		slog.Error("creating maintenance consumer", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(fcnats.FetchTimeout))
		if err != nil {
			continue
		}
		for msg := range batch.Messages() {
			r.handleRequest(ctx, msg)
		}
	}
}

func (r *Runner) handleRequest(ctx context.Context, msg jetstream.Msg) {
	defer func() {
		if err := msg.Ack(); err != nil {
			slog.Warn("acking maintenance message", "error", err)
		}
	}()

	var req fcnats.MaintenanceRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		slog.Warn("invalid maintenance request", "error", err)
		return
	}

	switch msg.Subject() {
	case fcnats.SubjectMaintenancePrune:
		slog.Info("prune requested", "request_id", req.ID, "requested_by", req.RequestedBy)
		r.Sweep(ctx)
	case fcnats.SubjectMaintenanceRebuild:
		slog.Info("rebuild requested", "request_id", req.ID, "requested_by", req.RequestedBy)
		if err := r.engine.Rebuild(ctx); err != nil {
			slog.Error("requested rebuild failed", "error", err)
		}
	default:
		slog.Warn("unknown maintenance subject", "subject", msg.Subject())
	}
}
