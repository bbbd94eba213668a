package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	paymentdomain "github.com/smallbiznis/ledgerlink/internal/payment/domain"
	rawdomain "github.com/smallbiznis/ledgerlink/internal/rawevent/domain"
	recdomain "github.com/smallbiznis/ledgerlink/internal/reconciliation/domain"
)

type fakeRawService struct {
	captureCalls int
	lastInput    rawdomain.CaptureInput
}

func (f *fakeRawService) Capture(ctx context.Context, input rawdomain.CaptureInput) (*rawdomain.RawEvent, error) {
	f.captureCalls++
	f.lastInput = input
	_ = ctx
	return &rawdomain.RawEvent{
		ID:       snowflake.ID(42),
		IngestID: "01J0000000000000000000TEST",
		OrgID:    input.OrgID,
		Provider: input.Provider,
	}, nil
}

func (f *fakeRawService) FindByID(ctx context.Context, id snowflake.ID) (*rawdomain.RawEvent, error) {
	_ = ctx
	_ = id
	return nil, rawdomain.ErrRawEventNotFound
}

func (f *fakeRawService) MarkProcessed(ctx context.Context, id snowflake.ID) error {
	_ = ctx
	_ = id
	return nil
}

type fakeReconService struct {
	confirmErr   error
	confirmCalls int
}

func (f *fakeReconService) Import(ctx context.Context, orgID snowflake.ID, records []recdomain.ImportRecord) (*recdomain.ImportResult, error) {
	_ = ctx
	_ = orgID
	return &recdomain.ImportResult{Received: len(records), Inserted: len(records)}, nil
}

func (f *fakeReconService) FindPotentialMatches(ctx context.Context, orgID, transactionID snowflake.ID) (*recdomain.BankTransaction, []paymentdomain.Payment, error) {
	_ = ctx
	return &recdomain.BankTransaction{ID: transactionID, OrgID: orgID}, nil, nil
}

func (f *fakeReconService) ConfirmMatch(ctx context.Context, orgID, transactionID, paymentID snowflake.ID) (*recdomain.BankTransaction, error) {
	f.confirmCalls++
	_ = ctx
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &recdomain.BankTransaction{ID: transactionID, OrgID: orgID, MatchID: &paymentID}, nil
}

type fakeJobService struct {
	requeueErr error
	dead       []jobdomain.Job
}

func (f *fakeJobService) Enqueue(ctx context.Context, input jobdomain.EnqueueInput) (*jobdomain.Job, error) {
	_ = ctx
	_ = input
	return nil, nil
}

func (f *fakeJobService) ClaimNextJobs(ctx context.Context, limit int) ([]jobdomain.Job, error) {
	_ = ctx
	_ = limit
	return nil, nil
}

func (f *fakeJobService) MarkCompleted(ctx context.Context, jobID snowflake.ID) error {
	_ = ctx
	_ = jobID
	return nil
}

func (f *fakeJobService) RecordFailure(ctx context.Context, job *jobdomain.Job, jobErr error) (jobdomain.Status, error) {
	_ = ctx
	_ = job
	_ = jobErr
	return jobdomain.StatusQueued, nil
}

func (f *fakeJobService) ListDead(ctx context.Context, orgID snowflake.ID, limit int) ([]jobdomain.Job, error) {
	_ = ctx
	_ = orgID
	_ = limit
	return f.dead, nil
}

func (f *fakeJobService) Requeue(ctx context.Context, orgID, jobID snowflake.ID) (*jobdomain.Job, error) {
	_ = ctx
	if f.requeueErr != nil {
		return nil, f.requeueErr
	}
	return &jobdomain.Job{ID: jobID, OrgID: orgID, Status: jobdomain.StatusQueued}, nil
}

func newTestRouter(srv *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.engine = router
	srv.registerAPIRoutes()
	return router
}

func TestHandleWebhookCapturesPayload(t *testing.T) {
	rawSvc := &fakeRawService{}
	srv := &Server{rawSvc: rawSvc, clock: clock.NewSystemClock()}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/pagarme", bytes.NewBufferString(`{"event":"order.paid"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-Id", "7001")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if rawSvc.captureCalls != 1 {
		t.Fatalf("expected one capture call, got %d", rawSvc.captureCalls)
	}
	if rawSvc.lastInput.Provider != "pagarme" {
		t.Fatalf("expected provider pagarme, got %q", rawSvc.lastInput.Provider)
	}
	if rawSvc.lastInput.OrgID != snowflake.ID(7001) {
		t.Fatalf("expected org 7001, got %d", rawSvc.lastInput.OrgID)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["ingest_id"] == "" {
		t.Fatal("expected an ingest_id in the response")
	}
}

func TestHandleWebhookRequiresOrg(t *testing.T) {
	rawSvc := &fakeRawService{}
	srv := &Server{rawSvc: rawSvc, clock: clock.NewSystemClock()}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/pagarme", bytes.NewBufferString(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if rawSvc.captureCalls != 0 {
		t.Fatal("expected capture not to be called without an org")
	}
}

func TestConfirmMatchConflictMapsTo409(t *testing.T) {
	reconSvc := &fakeReconService{confirmErr: recdomain.ErrAlreadyMatched}
	srv := &Server{reconSvc: reconSvc, clock: clock.NewSystemClock()}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/reconciliation/transactions/555/match", bytes.NewBufferString(`{"payment_id":"901"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-Id", "7001")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
	if reconSvc.confirmCalls != 1 {
		t.Fatalf("expected one confirm call, got %d", reconSvc.confirmCalls)
	}
}

func TestRequeueNotDeadMapsTo409(t *testing.T) {
	jobSvc := &fakeJobService{requeueErr: jobdomain.ErrJobNotDead}
	srv := &Server{jobSvc: jobSvc, clock: clock.NewSystemClock()}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/123/requeue", nil)
	req.Header.Set("X-Org-Id", "7001")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPreviewInstallmentsRemainderOnLast(t *testing.T) {
	srv := &Server{clock: clock.NewSystemClock()}
	router := newTestRouter(srv)

	payload := map[string]any{
		"total_amount_cents": 10001,
		"entry_amount_cents": 0,
		"installments":       3,
		"rule": map[string]any{
			"type":            "days_after_entry",
			"days_after_entry": 7,
		},
		"entry_paid_at": time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/installments/preview", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var decoded struct {
		Installments []struct {
			Number      int   `json:"installment_number"`
			AmountCents int64 `json:"amount_cents"`
		} `json:"installments"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Installments) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(decoded.Installments))
	}
	if decoded.Installments[0].AmountCents != 3333 {
		t.Fatalf("expected first installment 3333, got %d", decoded.Installments[0].AmountCents)
	}
	if decoded.Installments[2].AmountCents != 3335 {
		t.Fatalf("expected last installment to absorb the remainder, got %d", decoded.Installments[2].AmountCents)
	}
}

func TestPreviewInstallmentsRejectsZeroCount(t *testing.T) {
	srv := &Server{clock: clock.NewSystemClock()}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/installments/preview", bytes.NewBufferString(`{"total_amount_cents":10000,"installments":0,"rule":{"type":"days_after_entry"}}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
}
