package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	meteringdomain "github.com/smallbiznis/ledgerlink/internal/metering/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestIncrementApplied_AccumulatesPerDay(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&meteringdomain.UsageCounter{}))

	node, _ := snowflake.NewNode(1)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
	})

	orgID := node.Generate()
	assert.NoError(t, svc.IncrementApplied(context.Background(), orgID, 3))
	assert.NoError(t, svc.IncrementApplied(context.Background(), orgID, 4))

	counter, err := svc.Usage(context.Background(), orgID, fake.Now())
	assert.NoError(t, err)
	assert.Equal(t, int64(7), counter.EventsApplied)

	// next day starts a fresh row
	fake.Advance(24 * time.Hour)
	assert.NoError(t, svc.IncrementApplied(context.Background(), orgID, 1))

	counter, err = svc.Usage(context.Background(), orgID, fake.Now())
	assert.NoError(t, err)
	assert.Equal(t, int64(1), counter.EventsApplied)

	var count int64
	assert.NoError(t, db.Model(&meteringdomain.UsageCounter{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
