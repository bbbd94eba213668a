package apply

import (
	"context"
	"encoding/json"

	"github.com/smallbiznis/ledgerlink/internal/connector"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	"github.com/smallbiznis/ledgerlink/internal/jobqueue/worker"
	rawdomain "github.com/smallbiznis/ledgerlink/internal/rawevent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type NormalizeHandlerParams struct {
	fx.In

	Log       *zap.Logger
	RawEvents rawdomain.Service
	Registry  *connector.Registry
	Jobs      jobdomain.Service
}

// NormalizeHandler turns a captured raw webhook into canonical events and
// fans them out as apply_event jobs. The whole job fails as one unit; a
// half-normalized webhook has no meaning.
type NormalizeHandler struct {
	log       *zap.Logger
	rawEvents rawdomain.Service
	registry  *connector.Registry
	jobs      jobdomain.Service
}

func NewNormalizeHandler(p NormalizeHandlerParams) worker.Handler {
	return &NormalizeHandler{
		log:       p.Log.Named("apply.normalize"),
		rawEvents: p.RawEvents,
		registry:  p.Registry,
		jobs:      p.Jobs,
	}
}

func (h *NormalizeHandler) JobType() jobdomain.JobType { return jobdomain.JobTypeNormalizeEvent }

func (h *NormalizeHandler) Handle(ctx context.Context, job *jobdomain.Job) error {
	var payload jobdomain.NormalizePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return err
	}

	raw, err := h.rawEvents.FindByID(ctx, payload.RawEventID)
	if err != nil {
		return err
	}

	conn, err := h.registry.Get(raw.Provider)
	if err != nil {
		return err
	}

	events, err := conn.Normalize(ctx, json.RawMessage(raw.Payload), connector.Context{
		OrgID:     raw.OrgID,
		ProjectID: raw.ProjectID,
		TraceID:   raw.IngestID,
	})
	if err != nil {
		return err
	}

	for i := range events {
		if _, err := h.jobs.Enqueue(ctx, jobdomain.EnqueueInput{
			OrgID:     events[i].OrgID,
			ProjectID: events[i].ProjectID,
			JobType:   jobdomain.JobTypeApplyEvent,
			Payload:   &events[i],
		}); err != nil {
			return err
		}
	}

	if err := h.rawEvents.MarkProcessed(ctx, raw.ID); err != nil {
		return err
	}

	h.log.Info("raw event normalized",
		zap.String("ingest_id", raw.IngestID),
		zap.String("provider", raw.Provider),
		zap.Int("canonical_events", len(events)),
	)
	return nil
}
