package apply

import (
	"context"
	"fmt"

	anomalydomain "github.com/smallbiznis/ledgerlink/internal/anomaly/domain"
	"github.com/smallbiznis/ledgerlink/internal/canonical"
	identitydomain "github.com/smallbiznis/ledgerlink/internal/identity/domain"
	installmentdomain "github.com/smallbiznis/ledgerlink/internal/installment/domain"
	ledgerdomain "github.com/smallbiznis/ledgerlink/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/ledgerlink/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/ledgerlink/internal/order/domain"
	paymentdomain "github.com/smallbiznis/ledgerlink/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DomainEventHandler applies one domain type. The engine builds its dispatch
// table from these at startup so the handled set stays closed and explicit.
type DomainEventHandler interface {
	DomainType() canonical.DomainType
	Apply(ctx context.Context, event *canonical.Event) error
}

type Params struct {
	fx.In

	Log          *zap.Logger
	Orders       orderdomain.Service
	Payments     paymentdomain.Service
	Identity     identitydomain.Service
	Ledger       ledgerdomain.Service
	Installments installmentdomain.Service
	Anomalies    anomalydomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

// Engine projects canonical events onto domain rows and ledger entries.
// Every write it makes is an upsert against a uniqueness key, so replays
// of the same event are harmless.
type Engine struct {
	log        *zap.Logger
	anomalies  anomalydomain.Service
	obsMetrics *obsmetrics.Metrics
	handlers   map[canonical.DomainType]DomainEventHandler
}

func NewEngine(p Params) *Engine {
	log := p.Log.Named("apply.engine")
	handlers := map[canonical.DomainType]DomainEventHandler{}
	for _, h := range []DomainEventHandler{
		newOrderHandler(log, p.Orders, p.Identity, p.Ledger, p.Installments),
		newPaymentHandler(log, p.Payments, p.Identity, p.Ledger),
	} {
		handlers[h.DomainType()] = h
	}
	return &Engine{
		log:        log,
		anomalies:  p.Anomalies,
		obsMetrics: p.ObsMetrics,
		handlers:   handlers,
	}
}

// ApplyToDomain applies each event independently. A failing event is written
// to the anomaly log and never aborts the rest of the batch; only the count
// of successfully applied events is reported back.
func (e *Engine) ApplyToDomain(ctx context.Context, events []canonical.Event) int {
	applied := 0
	for i := range events {
		if e.ApplyEvent(ctx, &events[i]) {
			applied++
		}
	}
	return applied
}

// ApplyEvent applies a single event. Returns true when the event reached
// the domain, false when it was skipped or recorded as an anomaly.
func (e *Engine) ApplyEvent(ctx context.Context, event *canonical.Event) bool {
	if err := event.Validate(); err != nil {
		e.recordAnomaly(ctx, event, err)
		return false
	}

	handler, ok := e.handlers[event.DomainType]
	if !ok {
		e.log.Info("skipping unhandled domain type",
			zap.String("domain_type", string(event.DomainType)),
			zap.String("provider", event.Provider),
			zap.String("provider_object_id", event.Refs.ProviderObjectID),
		)
		return false
	}

	if err := handler.Apply(ctx, event); err != nil {
		e.recordAnomaly(ctx, event, err)
		return false
	}

	if e.obsMetrics != nil {
		e.obsMetrics.RecordEventApplied(ctx, event.Provider, string(event.DomainType))
	}
	return true
}

func (e *Engine) recordAnomaly(ctx context.Context, event *canonical.Event, cause error) {
	e.log.Warn("event application failed",
		zap.String("domain_type", string(event.DomainType)),
		zap.String("provider", event.Provider),
		zap.String("provider_object_id", event.Refs.ProviderObjectID),
		zap.Error(cause),
	)
	if event.OrgID == 0 {
		return
	}
	err := e.anomalies.Record(ctx, anomalydomain.Anomaly{
		OrgID:       event.OrgID,
		EntityType:  string(event.DomainType),
		EntityID:    event.Refs.ProviderObjectID,
		Description: fmt.Sprintf("apply failed for %s/%s: %v", event.Provider, event.ProviderEventType, cause),
		Severity:    anomalydomain.SeverityError,
	})
	if err != nil {
		e.log.Error("failed to record anomaly", zap.Error(err))
	}
}
