package connector

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/canonical"
)

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrModuleNotFound   = errors.New("canonical_module_not_found")
)

// Context carries the request-scoped identifiers handed to a connector.
type Context struct {
	OrgID     snowflake.ID
	ProjectID *snowflake.ID
	TraceID   string
}

// Connector is implemented per payment/banking provider. Normalize turns a
// captured raw webhook body into canonical events; Apply handles the v2
// normalized-event shape for modules that own their own projection; and
// TriggerBackfill starts a provider-side resync.
type Connector interface {
	Provider() string
	Normalize(ctx context.Context, rawPayload json.RawMessage, cctx Context) ([]canonical.Event, error)
	Apply(ctx context.Context, event *canonical.NormalizedEvent, cctx Context) error
	TriggerBackfill(ctx context.Context, projectID *snowflake.ID, secrets map[string]string) error
}
