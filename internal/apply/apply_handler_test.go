package apply

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/canonical"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/connector"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	meteringdomain "github.com/smallbiznis/ledgerlink/internal/metering/domain"
	meteringservice "github.com/smallbiznis/ledgerlink/internal/metering/service"
	orderdomain "github.com/smallbiznis/ledgerlink/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeConnector struct {
	provider   string
	applyCalls []*canonical.NormalizedEvent
}

func (f *fakeConnector) Provider() string { return f.provider }

func (f *fakeConnector) Normalize(context.Context, json.RawMessage, connector.Context) ([]canonical.Event, error) {
	return nil, nil
}

func (f *fakeConnector) Apply(_ context.Context, event *canonical.NormalizedEvent, _ connector.Context) error {
	f.applyCalls = append(f.applyCalls, event)
	return nil
}

func (f *fakeConnector) TriggerBackfill(context.Context, *snowflake.ID, map[string]string) error {
	return nil
}

func TestApplyHandler_RoutesV1ThroughEngine(t *testing.T) {
	engine, db, node := newTestEngine(t)
	assert.NoError(t, db.AutoMigrate(&meteringdomain.UsageCounter{}))

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	metering := meteringservice.NewService(meteringservice.Params{DB: db, Log: log, GenID: node, Clock: fake})

	handler := NewApplyHandler(ApplyHandlerParams{
		Log:      log,
		Engine:   engine,
		Registry: connector.NewRegistry(&fakeConnector{provider: "stripe"}),
		Metering: metering,
	})

	orgID := node.Generate()
	event := orderEvent(t, orgID, "or_v1", "confirmed", 15000, nil)
	payload, err := json.Marshal(&event)
	assert.NoError(t, err)

	err = handler.Handle(context.Background(), &jobdomain.Job{
		ID:      node.Generate(),
		OrgID:   orgID,
		JobType: jobdomain.JobTypeApplyEvent,
		Payload: payload,
	})
	assert.NoError(t, err)

	var orderCount int64
	assert.NoError(t, db.Model(&orderdomain.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)

	counter, err := metering.Usage(context.Background(), orgID, fake.Now())
	assert.NoError(t, err)
	assert.Equal(t, int64(1), counter.EventsApplied)
}

func TestApplyHandler_RoutesV2ToConnector(t *testing.T) {
	engine, db, node := newTestEngine(t)
	assert.NoError(t, db.AutoMigrate(&meteringdomain.UsageCounter{}))

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	metering := meteringservice.NewService(meteringservice.Params{DB: db, Log: log, GenID: node, Clock: fake})

	conn := &fakeConnector{provider: "pagarme"}
	handler := NewApplyHandler(ApplyHandlerParams{
		Log:      log,
		Engine:   engine,
		Registry: connector.NewRegistry(conn),
		Metering: metering,
	})

	orgID := node.Generate()
	payload, err := json.Marshal(canonical.NormalizedEvent{
		CanonicalModule: "enrollment",
		OrgID:           orgID,
		Provider:        "pagarme",
		EventType:       "enrollment.updated",
		Payload:         json.RawMessage(`{"plan": "annual"}`),
	})
	assert.NoError(t, err)

	err = handler.Handle(context.Background(), &jobdomain.Job{
		ID:      node.Generate(),
		OrgID:   orgID,
		JobType: jobdomain.JobTypeApplyEvent,
		Payload: payload,
	})
	assert.NoError(t, err)

	assert.Len(t, conn.applyCalls, 1)
	assert.Equal(t, "enrollment", conn.applyCalls[0].CanonicalModule)

	// v2 events never touch the shared projection tables
	var orderCount int64
	assert.NoError(t, db.Model(&orderdomain.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)
}
