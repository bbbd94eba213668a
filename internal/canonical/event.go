package canonical

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Env distinguishes sandbox traffic from production traffic.
type Env string

const (
	EnvSandbox    Env = "sandbox"
	EnvProduction Env = "production"
)

// DomainType discriminates the payload carried by a canonical event.
type DomainType string

const (
	DomainTypeOrder           DomainType = "order"
	DomainTypePayment         DomainType = "payment"
	DomainTypePayout          DomainType = "payout"
	DomainTypeRefund          DomainType = "refund"
	DomainTypeDispute         DomainType = "dispute"
	DomainTypeBankTransaction DomainType = "bank_transaction"
)

var (
	ErrInvalidEvent      = errors.New("invalid_canonical_event")
	ErrInvalidDomainType = errors.New("invalid_domain_type")
	ErrInvalidPayload    = errors.New("invalid_event_payload")
)

// Refs carries the provider-side identifiers a canonical event points at.
type Refs struct {
	ProviderObjectID  string `json:"provider_object_id"`
	ProviderRelatedID string `json:"provider_related_id,omitempty"`
	LinkID            string `json:"link_id,omitempty"`
}

// Event is the provider-agnostic representation of a financial occurrence.
// Connectors produce it; the application engine only reads it.
type Event struct {
	OrgID             snowflake.ID    `json:"org_id"`
	ProjectID         *snowflake.ID   `json:"project_id,omitempty"`
	Env               Env             `json:"env"`
	Provider          string          `json:"provider"`
	ProviderEventType string          `json:"provider_event_type"`
	OccurredAt        time.Time       `json:"occurred_at"`
	DomainType        DomainType      `json:"domain_type"`
	Data              json.RawMessage `json:"data"`
	Refs              Refs            `json:"refs"`
}

// Validate checks the envelope fields shared by every domain type.
func (e *Event) Validate() error {
	if e == nil {
		return ErrInvalidEvent
	}
	if e.OrgID == 0 {
		return ErrInvalidEvent
	}
	e.Provider = strings.ToLower(strings.TrimSpace(e.Provider))
	if e.Provider == "" {
		return ErrInvalidEvent
	}
	if strings.TrimSpace(e.Refs.ProviderObjectID) == "" {
		return ErrInvalidEvent
	}
	if e.OccurredAt.IsZero() {
		return ErrInvalidEvent
	}
	switch e.DomainType {
	case DomainTypeOrder, DomainTypePayment, DomainTypePayout,
		DomainTypeRefund, DomainTypeDispute, DomainTypeBankTransaction:
	default:
		return ErrInvalidDomainType
	}
	if e.Env == "" {
		e.Env = EnvProduction
	}
	return nil
}

// ProductLine is one purchased item on an order.
type ProductLine struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// PaymentTerms describes an installment plan attached to a sale.
type PaymentTerms struct {
	TotalAmountCents int64        `json:"total_amount_cents"`
	EntryAmountCents int64        `json:"entry_amount_cents"`
	Installments     int          `json:"installments"`
	Rule             ScheduleRule `json:"rule"`
	EntryPaidAt      *time.Time   `json:"entry_paid_at,omitempty"`
	CycleStart       *time.Time   `json:"cycle_start,omitempty"`
}

// ScheduleRule selects how installment due dates are derived.
type ScheduleRule struct {
	Type           string     `json:"type"`
	FirstDueDate   *time.Time `json:"first_due_date,omitempty"`
	DaysAfterEntry int        `json:"days_after_entry,omitempty"`
	DueDay         int        `json:"due_day,omitempty"`
	IntervalMonths int        `json:"interval_months,omitempty"`
}

// OrderData is the payload for DomainTypeOrder.
type OrderData struct {
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email"`
	Products      []ProductLine `json:"products,omitempty"`
	TotalCents    int64         `json:"total_cents"`
	Currency      string        `json:"currency"`
	Status        string        `json:"status"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	Terms         *PaymentTerms `json:"terms,omitempty"`
}

// PaymentData is the payload for DomainTypePayment.
type PaymentData struct {
	AmountCents  int64      `json:"amount_cents"`
	FeeCents     int64      `json:"fee_cents"`
	NetCents     int64      `json:"net_cents"`
	Currency     string     `json:"currency"`
	Method       string     `json:"method"`
	Installments int        `json:"installments"`
	Status       string     `json:"status"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

// ConfirmedOrderStatuses are the order states that book revenue.
var ConfirmedOrderStatuses = map[string]struct{}{
	"paid":      {},
	"approved":  {},
	"confirmed": {},
	"completed": {},
}

// PaidPaymentStatuses are the payment states that settle money.
var PaidPaymentStatuses = map[string]struct{}{
	"paid":      {},
	"approved":  {},
	"succeeded": {},
}

func IsConfirmedOrderStatus(status string) bool {
	_, ok := ConfirmedOrderStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

func IsPaidPaymentStatus(status string) bool {
	_, ok := PaidPaymentStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// DecodeOrder validates the event as an order and decodes its payload.
func (e *Event) DecodeOrder() (OrderData, error) {
	var data OrderData
	if e.DomainType != DomainTypeOrder {
		return data, ErrInvalidDomainType
	}
	if err := decodeData(e.Data, &data); err != nil {
		return data, err
	}
	if data.TotalCents < 0 {
		return data, ErrInvalidPayload
	}
	return data, nil
}

// DecodePayment validates the event as a payment and decodes its payload.
func (e *Event) DecodePayment() (PaymentData, error) {
	var data PaymentData
	if e.DomainType != DomainTypePayment {
		return data, ErrInvalidDomainType
	}
	if err := decodeData(e.Data, &data); err != nil {
		return data, err
	}
	if data.AmountCents < 0 || data.FeeCents < 0 {
		return data, ErrInvalidPayload
	}
	return data, nil
}

func decodeData(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return ErrInvalidPayload
	}
	return nil
}
