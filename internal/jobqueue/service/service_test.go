package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/config"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// sqlite has no FOR UPDATE; strip the locking clause so the claim query
// still runs in tests.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)

	stripLocking := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	assert.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripLocking))
	assert.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripLocking))

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	assert.NoError(t, db.AutoMigrate(&jobdomain.Job{}))
	return db
}

func newTestService(t *testing.T) (jobdomain.Service, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Pipeline: config.NewStaticPipelineConfigHolder(config.DefaultPipelineConfig()),
	})
	return svc, fake, node
}

func TestEnqueueAndClaim(t *testing.T) {
	svc, fake, node := newTestService(t)
	orgID := node.Generate()

	job, err := svc.Enqueue(context.Background(), jobdomain.EnqueueInput{
		OrgID:   orgID,
		JobType: jobdomain.JobTypeNormalizeEvent,
		Payload: jobdomain.NormalizePayload{RawEventID: node.Generate()},
	})
	assert.NoError(t, err)
	assert.Equal(t, jobdomain.StatusQueued, job.Status)
	assert.Equal(t, fake.Now(), job.AvailableAt)

	claimed, err := svc.ClaimNextJobs(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)
	assert.Equal(t, job.ID, claimed[0].ID)

	// the lease hides the job from a second claimer
	claimed, err = svc.ClaimNextJobs(context.Background(), 10)
	assert.NoError(t, err)
	assert.Empty(t, claimed)

	// the lease expires if the job is never finished
	fake.Advance(11 * time.Minute)
	claimed, err = svc.ClaimNextJobs(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestEnqueue_RejectsUnknownType(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.Enqueue(context.Background(), jobdomain.EnqueueInput{
		OrgID:   node.Generate(),
		JobType: "reticulate_splines",
		Payload: map[string]any{},
	})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidJobType)
}

func TestRecordFailure_BackoffThenDead(t *testing.T) {
	svc, fake, node := newTestService(t)
	orgID := node.Generate()

	job, err := svc.Enqueue(context.Background(), jobdomain.EnqueueInput{
		OrgID:   orgID,
		JobType: jobdomain.JobTypeApplyEvent,
		Payload: map[string]any{},
	})
	assert.NoError(t, err)

	jobErr := errors.New("connector timeout")

	// failure 1: retried with 2 minute backoff
	status, err := svc.RecordFailure(context.Background(), job, jobErr)
	assert.NoError(t, err)
	assert.Equal(t, jobdomain.StatusQueued, status)

	var stored jobdomain.Job
	assert.NoError(t, queryJob(svc, job.ID, &stored))
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, fake.Now().Add(2*time.Minute), stored.AvailableAt.UTC())
	assert.Equal(t, "connector timeout", stored.LastError)

	// failure 2: retried with 4 minute backoff
	status, err = svc.RecordFailure(context.Background(), job, jobErr)
	assert.NoError(t, err)
	assert.Equal(t, jobdomain.StatusQueued, status)

	assert.NoError(t, queryJob(svc, job.ID, &stored))
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, fake.Now().Add(4*time.Minute), stored.AvailableAt.UTC())

	// failure 3: dead-lettered, never eligible again
	status, err = svc.RecordFailure(context.Background(), job, jobErr)
	assert.NoError(t, err)
	assert.Equal(t, jobdomain.StatusDead, status)

	assert.NoError(t, queryJob(svc, job.ID, &stored))
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, jobdomain.StatusDead, stored.Status)

	fake.Advance(24 * time.Hour)
	claimed, err := svc.ClaimNextJobs(context.Background(), 10)
	assert.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestMarkCompleted_AfterRetries(t *testing.T) {
	svc, _, node := newTestService(t)

	job, err := svc.Enqueue(context.Background(), jobdomain.EnqueueInput{
		OrgID:   node.Generate(),
		JobType: jobdomain.JobTypeApplyEvent,
		Payload: map[string]any{},
	})
	assert.NoError(t, err)

	jobErr := errors.New("transient")
	_, err = svc.RecordFailure(context.Background(), job, jobErr)
	assert.NoError(t, err)
	_, err = svc.RecordFailure(context.Background(), job, jobErr)
	assert.NoError(t, err)

	assert.NoError(t, svc.MarkCompleted(context.Background(), job.ID))

	var stored jobdomain.Job
	assert.NoError(t, queryJob(svc, job.ID, &stored))
	assert.Equal(t, jobdomain.StatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}

func TestRequeue_OnlyDeadJobs(t *testing.T) {
	svc, _, node := newTestService(t)
	orgID := node.Generate()

	job, err := svc.Enqueue(context.Background(), jobdomain.EnqueueInput{
		OrgID:   orgID,
		JobType: jobdomain.JobTypeSyncProvider,
		Payload: jobdomain.SyncPayload{Provider: "stripe"},
	})
	assert.NoError(t, err)

	_, err = svc.Requeue(context.Background(), orgID, job.ID)
	assert.ErrorIs(t, err, jobdomain.ErrJobNotDead)

	jobErr := errors.New("credentials revoked")
	for i := 0; i < 3; i++ {
		_, err = svc.RecordFailure(context.Background(), job, jobErr)
		assert.NoError(t, err)
	}

	dead, err := svc.ListDead(context.Background(), orgID, 10)
	assert.NoError(t, err)
	assert.Len(t, dead, 1)
	assert.Equal(t, "credentials revoked", dead[0].LastError)

	requeued, err := svc.Requeue(context.Background(), orgID, job.ID)
	assert.NoError(t, err)
	assert.Equal(t, jobdomain.StatusQueued, requeued.Status)
	assert.Equal(t, 0, requeued.Attempts)

	claimed, err := svc.ClaimNextJobs(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)
	assert.Equal(t, job.ID, claimed[0].ID)
}

func queryJob(svc jobdomain.Service, id snowflake.ID, out *jobdomain.Job) error {
	impl := svc.(*Service)
	return impl.db.Where("id = ?", id).First(out).Error
}
