package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	rawdomain "github.com/smallbiznis/ledgerlink/internal/rawevent/domain"
)

// HandleWebhook captures the raw provider payload and queues it for
// normalization. The body is stored verbatim so a bad payload can be
// replayed after a connector fix.
func (s *Server) HandleWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	if provider == "" {
		AbortWithError(c, newValidationError("provider", "required", "provider is required"))
		return
	}

	orgID, err := orgFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.rawSvc.Capture(c.Request.Context(), rawdomain.CaptureInput{
		OrgID:     orgID,
		ProjectID: projectFromRequest(c),
		Provider:  provider,
		Payload:   payload,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":        event.ID.String(),
		"ingest_id": event.IngestID,
		"status":    "queued",
	})
}

func orgFromRequest(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetHeader("X-Org-Id"))
	if raw == "" {
		return 0, newValidationError("org_id", "required", "X-Org-Id header is required")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError("org_id", "invalid_org_id", "X-Org-Id is not a valid id")
	}
	return id, nil
}

func projectFromRequest(c *gin.Context) *snowflake.ID {
	raw := strings.TrimSpace(c.GetHeader("X-Project-Id"))
	if raw == "" {
		return nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil
	}
	return &id
}
