package apply

import (
	"context"
	"encoding/json"

	"github.com/smallbiznis/ledgerlink/internal/canonical"
	identitydomain "github.com/smallbiznis/ledgerlink/internal/identity/domain"
	installmentdomain "github.com/smallbiznis/ledgerlink/internal/installment/domain"
	ledgerdomain "github.com/smallbiznis/ledgerlink/internal/ledger/domain"
	orderdomain "github.com/smallbiznis/ledgerlink/internal/order/domain"
	"go.uber.org/zap"
)

type orderHandler struct {
	log          *zap.Logger
	orders       orderdomain.Service
	identity     identitydomain.Service
	ledger       ledgerdomain.Service
	installments installmentdomain.Service
}

func newOrderHandler(log *zap.Logger, orders orderdomain.Service, identity identitydomain.Service, ledger ledgerdomain.Service, installments installmentdomain.Service) DomainEventHandler {
	return &orderHandler{
		log:          log.Named("order"),
		orders:       orders,
		identity:     identity,
		ledger:       ledger,
		installments: installments,
	}
}

func (h *orderHandler) DomainType() canonical.DomainType { return canonical.DomainTypeOrder }

// Apply upserts the order, refreshes its identity mapping, books the sale
// credit when the order is confirmed, and materializes the installment plan
// when the sale carries payment terms. Revenue is booked on an accrual
// basis: confirmation of the sale, not capture of the cash.
func (h *orderHandler) Apply(ctx context.Context, event *canonical.Event) error {
	data, err := event.DecodeOrder()
	if err != nil {
		return err
	}

	var products []byte
	if len(data.Products) > 0 {
		products, err = json.Marshal(data.Products)
		if err != nil {
			return err
		}
	}

	stored, err := h.orders.Upsert(ctx, orderdomain.Order{
		OrgID:            event.OrgID,
		ProjectID:        event.ProjectID,
		Provider:         event.Provider,
		ProviderObjectID: event.Refs.ProviderObjectID,
		CustomerName:     data.CustomerName,
		CustomerEmail:    data.CustomerEmail,
		Products:         products,
		TotalAmountCents: data.TotalCents,
		Currency:         data.Currency,
		Status:           data.Status,
		OccurredAt:       event.OccurredAt,
	})
	if err != nil {
		return err
	}

	if err := h.identity.Upsert(ctx, identitydomain.ExternalRef{
		OrgID:            event.OrgID,
		Provider:         event.Provider,
		EntityType:       string(canonical.DomainTypeOrder),
		ProviderObjectID: event.Refs.ProviderObjectID,
		CanonicalTable:   orderdomain.Order{}.TableName(),
		CanonicalID:      stored.ID,
	}); err != nil {
		return err
	}

	if canonical.IsConfirmedOrderStatus(data.Status) && data.TotalCents > 0 {
		if _, err := h.ledger.RecordEntry(ctx, ledgerdomain.EntryInput{
			OrgID:            event.OrgID,
			ProjectID:        event.ProjectID,
			EntryDate:        event.OccurredAt,
			Direction:        ledgerdomain.DirectionCredit,
			AmountCents:      data.TotalCents,
			Category:         ledgerdomain.CategorySale,
			SourceType:       ledgerdomain.SourceTypeOrder,
			SourceID:         stored.ID,
			SourceProvider:   event.Provider,
			SourceExternalID: event.Refs.ProviderObjectID,
			Memo:             "sale " + event.Refs.ProviderObjectID,
		}); err != nil {
			return err
		}
	}

	if data.Terms != nil {
		if _, err := h.installments.CreatePlan(ctx, event.OrgID, stored.ID, *data.Terms); err != nil {
			return err
		}
	}
	return nil
}
