package apply

import (
	"context"

	"github.com/smallbiznis/ledgerlink/internal/canonical"
	"github.com/smallbiznis/ledgerlink/internal/connector"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	"github.com/smallbiznis/ledgerlink/internal/jobqueue/worker"
	meteringdomain "github.com/smallbiznis/ledgerlink/internal/metering/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ApplyHandlerParams struct {
	fx.In

	Log      *zap.Logger
	Engine   *Engine
	Registry *connector.Registry
	Metering meteringdomain.Service
}

// ApplyHandler routes an apply_event payload: the v1 canonical shape goes
// through the shared engine, the v2 normalized shape goes to the connector
// module that owns it.
type ApplyHandler struct {
	log      *zap.Logger
	engine   *Engine
	registry *connector.Registry
	metering meteringdomain.Service
}

func NewApplyHandler(p ApplyHandlerParams) worker.Handler {
	return &ApplyHandler{
		log:      p.Log.Named("apply.handler"),
		engine:   p.Engine,
		registry: p.Registry,
		metering: p.Metering,
	}
}

func (h *ApplyHandler) JobType() jobdomain.JobType { return jobdomain.JobTypeApplyEvent }

func (h *ApplyHandler) Handle(ctx context.Context, job *jobdomain.Job) error {
	payload, err := canonical.ParseApplyPayload(job.Payload)
	if err != nil {
		return err
	}

	if payload.Normalized != nil {
		conn, err := h.registry.Get(payload.Normalized.Provider)
		if err != nil {
			return err
		}
		if err := conn.Apply(ctx, payload.Normalized, connector.Context{
			OrgID:     payload.Normalized.OrgID,
			ProjectID: payload.Normalized.ProjectID,
		}); err != nil {
			return err
		}
		return h.meter(ctx, job)
	}

	// a failed v1 apply lands in the anomaly log, not back on the queue
	h.engine.ApplyEvent(ctx, payload.Event)
	return h.meter(ctx, job)
}

func (h *ApplyHandler) meter(ctx context.Context, job *jobdomain.Job) error {
	if err := h.metering.IncrementApplied(ctx, job.OrgID, 1); err != nil {
		h.log.Warn("failed to increment usage counter",
			zap.String("org_id", job.OrgID.String()),
			zap.Error(err),
		)
	}
	return nil
}
