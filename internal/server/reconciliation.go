package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	recdomain "github.com/smallbiznis/ledgerlink/internal/reconciliation/domain"
)

type importTransactionsRequest struct {
	Transactions []recdomain.ImportRecord `json:"transactions"`
}

// ImportBankTransactions loads a bank statement export. Lines already seen
// for the org are counted as skipped, so re-uploading a statement is safe.
func (s *Server) ImportBankTransactions(c *gin.Context) {
	orgID, err := orgFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req importTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Transactions) == 0 {
		AbortWithError(c, newValidationError("transactions", "required", "transactions is required"))
		return
	}

	result, err := s.reconSvc.Import(c.Request.Context(), orgID, req.Transactions)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListTransactionMatches returns candidate payments for a statement line.
// Candidates are suggestions only; nothing is linked until an operator
// confirms.
func (s *Server) ListTransactionMatches(c *gin.Context) {
	orgID, err := orgFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txnID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txn, candidates, err := s.reconSvc.FindPotentialMatches(c.Request.Context(), orgID, txnID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction": txn,
		"candidates":  candidates,
	})
}

type confirmMatchRequest struct {
	PaymentID string `json:"payment_id"`
}

// ConfirmTransactionMatch links a statement line to a payment. Confirming
// the same pair twice succeeds without changes; a different payment for an
// already matched line is rejected.
func (s *Server) ConfirmTransactionMatch(c *gin.Context) {
	orgID, err := orgFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txnID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req confirmMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	paymentID, err := snowflake.ParseString(strings.TrimSpace(req.PaymentID))
	if err != nil {
		AbortWithError(c, newValidationError("payment_id", "invalid_payment_id", "payment_id is not a valid id"))
		return
	}

	txn, err := s.reconSvc.ConfirmMatch(c.Request.Context(), orgID, txnID, paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return 0, newValidationError(name, "invalid_id", "path id is not a valid id")
	}
	return id, nil
}
