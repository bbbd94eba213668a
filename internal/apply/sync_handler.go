package apply

import (
	"context"
	"encoding/json"

	"github.com/smallbiznis/ledgerlink/internal/backfill"
	"github.com/smallbiznis/ledgerlink/internal/connector"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	"github.com/smallbiznis/ledgerlink/internal/jobqueue/worker"
	"github.com/smallbiznis/ledgerlink/internal/secrets"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type SyncHandlerParams struct {
	fx.In

	Log      *zap.Logger
	Registry *connector.Registry
	Secrets  secrets.Store
	Guard    *backfill.Guard
}

// SyncHandler triggers a provider-side resync. Fire and forget: the
// connector owns the backfill, the queue only starts it.
type SyncHandler struct {
	log      *zap.Logger
	registry *connector.Registry
	secrets  secrets.Store
	guard    *backfill.Guard
}

func NewSyncHandler(p SyncHandlerParams) worker.Handler {
	return &SyncHandler{
		log:      p.Log.Named("apply.sync"),
		registry: p.Registry,
		secrets:  p.Secrets,
		guard:    p.Guard,
	}
}

func (h *SyncHandler) JobType() jobdomain.JobType { return jobdomain.JobTypeSyncProvider }

func (h *SyncHandler) Handle(ctx context.Context, job *jobdomain.Job) error {
	var payload jobdomain.SyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return err
	}

	conn, err := h.registry.Get(payload.Provider)
	if err != nil {
		return err
	}

	release, err := h.guard.Acquire(ctx, job.OrgID.String(), payload.Provider)
	if err != nil {
		return err
	}
	defer release()

	creds, err := h.secrets.ProviderSecrets(ctx, payload.Provider)
	if err != nil {
		return err
	}

	if err := conn.TriggerBackfill(ctx, job.ProjectID, creds); err != nil {
		return err
	}

	h.log.Info("provider backfill triggered",
		zap.String("provider", payload.Provider),
		zap.String("org_id", job.OrgID.String()),
	)
	return nil
}
