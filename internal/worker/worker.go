package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/channels"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/queue"
)

// janitorInterval is how often expired refresh tokens are purged.
const janitorInterval = time.Hour

// SessionStore is the refresh-token cleanup surface the janitor needs.
type SessionStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProvisionProcessor processes tenant provisioning jobs: after a tenant
// verifies its domain, the default channels are created so the workspace is
// usable on first login.
type ProvisionProcessor struct {
	channels *channels.Repository
	queue    *queue.Queue
	sessions SessionStore
	logger   *zap.Logger
}

// NewProvisionProcessor creates a tenant provisioning processor.
func NewProvisionProcessor(ch *channels.Repository, q *queue.Queue, sessions SessionStore, logger *zap.Logger) *ProvisionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisionProcessor{channels: ch, queue: q, sessions: sessions, logger: logger}
}

// Process executes one provisioning job. Idempotent: a retried job finds the
// default channels already present and succeeds.
func (p *ProvisionProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTenantProvision {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TenantProvisionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.TenantID == "" {
		return fmt.Errorf("job %s has no tenant id", job.ID)
	}

	err := tenantctx.Establish(ctx, payload.TenantID, func(ctx context.Context) error {
		return p.channels.CreateDefaults(ctx)
	})
	if err != nil {
		return fmt.Errorf("provision tenant %s: %w", payload.TenantID, err)
	}

	p.logger.Info("tenant provisioned",
		zap.String("job_id", job.ID),
		zap.String("tenant_id", payload.TenantID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ProvisionProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("provisioning worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// RunJanitor periodically deletes expired refresh tokens.
func (p *ProvisionProcessor) RunJanitor(ctx context.Context) {
	if p.sessions == nil {
		return
	}
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.sessions.DeleteExpired(ctx)
			if err != nil {
				p.logger.Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				p.logger.Info("expired sessions purged", zap.Int64("count", n))
			}
		}
	}
}
