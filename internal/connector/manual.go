package connector

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/canonical"
)

var ErrBackfillUnsupported = errors.New("backfill_unsupported")

// manual is the built-in connector for hand-entered and imported records.
// Its webhook payloads are already canonical: a single event or an array of
// events. It has no provider API, so backfill is unsupported.
type manual struct{}

func NewManual() Connector { return manual{} }

func (manual) Provider() string { return "manual" }

func (manual) Normalize(_ context.Context, rawPayload json.RawMessage, cctx Context) ([]canonical.Event, error) {
	var events []canonical.Event
	if err := json.Unmarshal(rawPayload, &events); err != nil {
		var single canonical.Event
		if err := json.Unmarshal(rawPayload, &single); err != nil {
			return nil, canonical.ErrInvalidPayload
		}
		events = []canonical.Event{single}
	}

	for i := range events {
		if events[i].OrgID == 0 {
			events[i].OrgID = cctx.OrgID
		}
		if events[i].ProjectID == nil {
			events[i].ProjectID = cctx.ProjectID
		}
		if err := events[i].Validate(); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (manual) Apply(context.Context, *canonical.NormalizedEvent, Context) error {
	return ErrModuleNotFound
}

func (manual) TriggerBackfill(context.Context, *snowflake.ID, map[string]string) error {
	return ErrBackfillUnsupported
}
