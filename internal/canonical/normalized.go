package canonical

import (
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// NormalizedEvent is the newer apply payload shape. Instead of the shared
// application engine, it is routed to the connector module named by
// CanonicalModule, which owns its own apply semantics.
type NormalizedEvent struct {
	CanonicalModule string          `json:"canonical_module"`
	OrgID           snowflake.ID    `json:"org_id"`
	ProjectID       *snowflake.ID   `json:"project_id,omitempty"`
	Provider        string          `json:"provider"`
	EventType       string          `json:"event_type"`
	Payload         json.RawMessage `json:"payload"`
}

func (n *NormalizedEvent) Validate() error {
	if n == nil {
		return ErrInvalidEvent
	}
	n.CanonicalModule = strings.TrimSpace(n.CanonicalModule)
	if n.CanonicalModule == "" {
		return ErrInvalidEvent
	}
	if n.OrgID == 0 {
		return ErrInvalidEvent
	}
	n.Provider = strings.ToLower(strings.TrimSpace(n.Provider))
	if n.Provider == "" {
		return ErrInvalidEvent
	}
	return nil
}

// ApplyPayload is the sum of the two apply_event payload shapes. Exactly one
// side is set. The v2 shape is detected by its canonical_module discriminator;
// everything else is treated as a v1 canonical event.
type ApplyPayload struct {
	Event      *Event
	Normalized *NormalizedEvent
}

// ParseApplyPayload decodes an apply_event job payload into one of the two
// supported shapes and validates it at the ingress boundary.
func ParseApplyPayload(raw []byte) (ApplyPayload, error) {
	var probe struct {
		CanonicalModule string `json:"canonical_module"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ApplyPayload{}, ErrInvalidPayload
	}

	if strings.TrimSpace(probe.CanonicalModule) != "" {
		var normalized NormalizedEvent
		if err := json.Unmarshal(raw, &normalized); err != nil {
			return ApplyPayload{}, ErrInvalidPayload
		}
		if err := normalized.Validate(); err != nil {
			return ApplyPayload{}, err
		}
		return ApplyPayload{Normalized: &normalized}, nil
	}

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return ApplyPayload{}, ErrInvalidPayload
	}
	if err := event.Validate(); err != nil {
		return ApplyPayload{}, err
	}
	return ApplyPayload{Event: &event}, nil
}
