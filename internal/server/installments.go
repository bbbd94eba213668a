package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/ledgerlink/internal/canonical"
	installmentdomain "github.com/smallbiznis/ledgerlink/internal/installment/domain"
)

type previewInstallmentsRequest struct {
	TotalAmountCents int64                  `json:"total_amount_cents"`
	EntryAmountCents int64                  `json:"entry_amount_cents"`
	Installments     int                    `json:"installments"`
	Rule             canonical.ScheduleRule `json:"rule"`
	EntryPaidAt      *time.Time             `json:"entry_paid_at,omitempty"`
	CycleStart       *time.Time             `json:"cycle_start,omitempty"`
	AnchorDate       *time.Time             `json:"anchor_date,omitempty"`
}

// PreviewInstallments runs the due date generator without persisting
// anything, so a caller can inspect a plan before the sale lands.
func (s *Server) PreviewInstallments(c *gin.Context) {
	var req previewInstallmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scheduled, err := installmentdomain.Generate(installmentdomain.GenerateInput{
		TotalAmountCents: req.TotalAmountCents,
		EntryAmountCents: req.EntryAmountCents,
		Installments:     req.Installments,
		Rule:             req.Rule,
		EntryPaidAt:      req.EntryPaidAt,
		CycleStart:       req.CycleStart,
		AnchorDate:       req.AnchorDate,
		Now:              s.clock.Now(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"installments": scheduled})
}
