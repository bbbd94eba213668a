package apply

import (
	"context"

	"github.com/smallbiznis/ledgerlink/internal/canonical"
	identitydomain "github.com/smallbiznis/ledgerlink/internal/identity/domain"
	ledgerdomain "github.com/smallbiznis/ledgerlink/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/ledgerlink/internal/payment/domain"
	"go.uber.org/zap"
)

type paymentHandler struct {
	log      *zap.Logger
	payments paymentdomain.Service
	identity identitydomain.Service
	ledger   ledgerdomain.Service
}

func newPaymentHandler(log *zap.Logger, payments paymentdomain.Service, identity identitydomain.Service, ledger ledgerdomain.Service) DomainEventHandler {
	return &paymentHandler{
		log:      log.Named("payment"),
		payments: payments,
		identity: identity,
		ledger:   ledger,
	}
}

func (h *paymentHandler) DomainType() canonical.DomainType { return canonical.DomainTypePayment }

// Apply upserts the payment and refreshes its identity mapping. Cash side
// revenue is already booked when the order confirms; the only posting here
// is the processor fee on a captured payment.
func (h *paymentHandler) Apply(ctx context.Context, event *canonical.Event) error {
	data, err := event.DecodePayment()
	if err != nil {
		return err
	}

	stored, err := h.payments.Upsert(ctx, paymentdomain.Payment{
		OrgID:            event.OrgID,
		ProjectID:        event.ProjectID,
		Provider:         event.Provider,
		ProviderObjectID: event.Refs.ProviderObjectID,
		ProviderOrderID:  event.Refs.ProviderRelatedID,
		AmountCents:      data.AmountCents,
		FeeCents:         data.FeeCents,
		NetCents:         data.NetCents,
		Currency:         data.Currency,
		Method:           data.Method,
		Installments:     data.Installments,
		Status:           data.Status,
		PaidAt:           data.PaidAt,
	})
	if err != nil {
		return err
	}

	if err := h.identity.Upsert(ctx, identitydomain.ExternalRef{
		OrgID:            event.OrgID,
		Provider:         event.Provider,
		EntityType:       string(canonical.DomainTypePayment),
		ProviderObjectID: event.Refs.ProviderObjectID,
		CanonicalTable:   paymentdomain.Payment{}.TableName(),
		CanonicalID:      stored.ID,
	}); err != nil {
		return err
	}

	if canonical.IsPaidPaymentStatus(data.Status) && data.FeeCents > 0 {
		if _, err := h.ledger.RecordEntry(ctx, ledgerdomain.EntryInput{
			OrgID:            event.OrgID,
			ProjectID:        event.ProjectID,
			EntryDate:        event.OccurredAt,
			Direction:        ledgerdomain.DirectionDebit,
			AmountCents:      data.FeeCents,
			Category:         ledgerdomain.CategoryPaymentFee,
			SourceType:       ledgerdomain.SourceTypePayment,
			SourceID:         stored.ID,
			SourceProvider:   event.Provider,
			SourceExternalID: event.Refs.ProviderObjectID,
			Memo:             "processor fee " + event.Refs.ProviderObjectID,
		}); err != nil {
			return err
		}
	}
	return nil
}
