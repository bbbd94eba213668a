package apply

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/ledgerlink/internal/canonical"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/config"
	"github.com/smallbiznis/ledgerlink/internal/connector"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	jobservice "github.com/smallbiznis/ledgerlink/internal/jobqueue/service"
	rawdomain "github.com/smallbiznis/ledgerlink/internal/rawevent/domain"
	rawservice "github.com/smallbiznis/ledgerlink/internal/rawevent/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fanoutConnector struct {
	fakeConnector
	events []canonical.Event
}

func (f *fanoutConnector) Normalize(_ context.Context, _ json.RawMessage, _ connector.Context) ([]canonical.Event, error) {
	return f.events, nil
}

func TestNormalizeHandler_FansOutApplyJobs(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&jobdomain.Job{}, &rawdomain.RawEvent{}))

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	jobs := jobservice.NewService(jobservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Pipeline: config.NewStaticPipelineConfigHolder(config.DefaultPipelineConfig()),
	})
	rawEvents := rawservice.NewService(rawservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Jobs:  jobs,
	})

	orgID := node.Generate()
	conn := &fanoutConnector{
		fakeConnector: fakeConnector{provider: "stripe"},
		events: []canonical.Event{
			orderEvent(t, orgID, "or_1", "confirmed", 10000, nil),
			paymentEvent(t, orgID, "py_1", "paid", 10000, 290),
		},
	}

	captured, err := rawEvents.Capture(context.Background(), rawdomain.CaptureInput{
		OrgID:    orgID,
		Provider: "stripe",
		Payload:  json.RawMessage(`{"type": "checkout.completed"}`),
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, captured.IngestID)

	handler := NewNormalizeHandler(NormalizeHandlerParams{
		Log:       log,
		RawEvents: rawEvents,
		Registry:  connector.NewRegistry(conn),
		Jobs:      jobs,
	})

	var normalizeJob jobdomain.Job
	assert.NoError(t, db.Where("job_type = ?", jobdomain.JobTypeNormalizeEvent).First(&normalizeJob).Error)

	assert.NoError(t, handler.Handle(context.Background(), &normalizeJob))

	var applyJobs []jobdomain.Job
	assert.NoError(t, db.Where("job_type = ?", jobdomain.JobTypeApplyEvent).Find(&applyJobs).Error)
	assert.Len(t, applyJobs, 2)

	for _, job := range applyJobs {
		parsed, err := canonical.ParseApplyPayload(job.Payload)
		assert.NoError(t, err)
		assert.NotNil(t, parsed.Event)
		assert.Nil(t, parsed.Normalized)
	}

	stored, err := rawEvents.FindByID(context.Background(), captured.ID)
	assert.NoError(t, err)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestNormalizeHandler_UnknownProviderFails(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&jobdomain.Job{}, &rawdomain.RawEvent{}))

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	jobs := jobservice.NewService(jobservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Pipeline: config.NewStaticPipelineConfigHolder(config.DefaultPipelineConfig()),
	})
	rawEvents := rawservice.NewService(rawservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Jobs:  jobs,
	})

	captured, err := rawEvents.Capture(context.Background(), rawdomain.CaptureInput{
		OrgID:    node.Generate(),
		Provider: "unknown",
		Payload:  json.RawMessage(`{}`),
	})
	assert.NoError(t, err)

	handler := NewNormalizeHandler(NormalizeHandlerParams{
		Log:       log,
		RawEvents: rawEvents,
		Registry:  connector.NewRegistry(),
		Jobs:      jobs,
	})

	payload, err := json.Marshal(jobdomain.NormalizePayload{RawEventID: captured.ID})
	assert.NoError(t, err)
	err = handler.Handle(context.Background(), &jobdomain.Job{
		ID:      node.Generate(),
		OrgID:   captured.OrgID,
		JobType: jobdomain.JobTypeNormalizeEvent,
		Payload: payload,
	})
	assert.ErrorIs(t, err, connector.ErrProviderNotFound)
}
