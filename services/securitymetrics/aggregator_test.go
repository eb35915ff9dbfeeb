package securitymetrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/testutils"
)

func seedLogin(t *testing.T, store *audit.GormStore, success bool, email, ip string, at time.Time) {
	t.Helper()
	e := &audit.Event{
		ID:        uuid.NewString(),
		EventType: audit.EventLogin,
		Success:   success,
		CreatedAt: at,
	}
	if email != "" {
		e.UserEmail = &email
	}
	if ip != "" {
		e.IPAddress = &ip
	}
	require.NoError(t, store.Append(context.Background(), e))
}

func newAuditStore(t *testing.T) *audit.GormStore {
	t.Helper()
	return audit.NewGormStore(testutils.SetupTestDB(t, &audit.Event{}, &Snapshot{}))
}

func TestNormalizeWindowHours(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{24, 24},
		{0.5, 0.5},
		{336, 336},
		{337, 336},
		{10000, 336},
		{0, 24},
		{-5, 24},
		{math.NaN(), 24},
		{math.Inf(1), 24},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeWindowHours(tt.in, 24), "input %v", tt.in)
	}
}

func TestNormalizeTopN(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{10, 10},
		{3.9, 3},
		{0.5, 1},
		{100, 100},
		{250, 100},
		{0, 10},
		{-1, 10},
		{math.NaN(), 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTopN(tt.in, 10), "input %v", tt.in)
	}
}

func TestFailureRate(t *testing.T) {
	assert.Equal(t, 0.0, FailureRate(0, 0))
	assert.Equal(t, 30.0, FailureRate(3, 10))
	assert.Equal(t, 33.33, FailureRate(1, 3))
	assert.Equal(t, 66.67, FailureRate(2, 3))
	assert.Equal(t, 100.0, FailureRate(4, 4))
}

func TestComputeMetrics_SingleSource(t *testing.T) {
	store := newAuditStore(t)
	now := testutils.BaseTime

	for i := 0; i < 10; i++ {
		seedLogin(t, store, i >= 3, "resident@condo.test", "10.0.0.1", now.Add(-time.Duration(i+1)*time.Hour))
	}
	// Outside the window.
	seedLogin(t, store, false, "resident@condo.test", "10.0.0.1", now.Add(-25*time.Hour))

	agg := NewAggregator(store, testutils.GetTestConfig(), nil)
	result, err := agg.ComputeMetrics(context.Background(), 24, 10, now)
	require.NoError(t, err)

	assert.Equal(t, now, result.GeneratedAt)
	assert.Equal(t, 24.0, result.Window.Hours)
	assert.Equal(t, now.Add(-24*time.Hour), result.Window.Start)
	assert.Equal(t, now, result.Window.End)

	assert.Equal(t, LoginStats{Attempts: 10, FailedAttempts: 3, FailureRate: 30}, result.Login)
	assert.Equal(t, []IPAttempts{{IPAddress: "10.0.0.1", Attempts: 10, FailedAttempts: 3, FailureRate: 30}}, result.TopIPAttempts)
	assert.Equal(t, []UserAttempts{{UserEmail: "resident@condo.test", Attempts: 10, FailedAttempts: 3, FailureRate: 30}}, result.TopUserAttempts)
}

func TestComputeMetrics_RankingAndTruncation(t *testing.T) {
	store := newAuditStore(t)
	now := testutils.BaseTime
	at := now.Add(-time.Hour)

	for i := 0; i < 5; i++ {
		seedLogin(t, store, false, "a@condo.test", "10.0.0.5", at)
	}
	for i := 0; i < 3; i++ {
		seedLogin(t, store, true, "b@condo.test", "10.0.0.3", at)
	}
	seedLogin(t, store, true, "c@condo.test", "10.0.0.1", at)
	seedLogin(t, store, true, "", "", at)

	agg := NewAggregator(store, testutils.GetTestConfig(), nil)
	result, err := agg.ComputeMetrics(context.Background(), 24, 2, now)
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.Login.Attempts)
	assert.Equal(t, int64(5), result.Login.FailedAttempts)
	assert.Equal(t, 50.0, result.Login.FailureRate)

	require.Len(t, result.TopIPAttempts, 2)
	assert.Equal(t, IPAttempts{IPAddress: "10.0.0.5", Attempts: 5, FailedAttempts: 5, FailureRate: 100}, result.TopIPAttempts[0])
	assert.Equal(t, IPAttempts{IPAddress: "10.0.0.3", Attempts: 3, FailedAttempts: 0, FailureRate: 0}, result.TopIPAttempts[1])

	require.Len(t, result.TopUserAttempts, 2)
	assert.Equal(t, "a@condo.test", result.TopUserAttempts[0].UserEmail)
	assert.Equal(t, "b@condo.test", result.TopUserAttempts[1].UserEmail)
}

func TestComputeMetrics_IgnoresOtherEvents(t *testing.T) {
	store := newAuditStore(t)
	now := testutils.BaseTime
	ip := "10.0.0.9"
	require.NoError(t, store.Append(context.Background(), &audit.Event{
		ID: uuid.NewString(), EventType: audit.EventRefresh, Success: false, IPAddress: &ip, CreatedAt: now.Add(-time.Hour),
	}))

	agg := NewAggregator(store, testutils.GetTestConfig(), nil)
	result, err := agg.ComputeMetrics(context.Background(), 24, 10, now)
	require.NoError(t, err)

	assert.Equal(t, LoginStats{}, result.Login)
	assert.Empty(t, result.TopIPAttempts)
	assert.Empty(t, result.TopUserAttempts)
}

func TestComputeMetrics_InvalidInputsUseDefaults(t *testing.T) {
	store := newAuditStore(t)
	now := testutils.BaseTime
	seedLogin(t, store, true, "a@condo.test", "10.0.0.1", now.Add(-23*time.Hour))
	seedLogin(t, store, true, "a@condo.test", "10.0.0.1", now.Add(-30*time.Hour))

	agg := NewAggregator(store, testutils.GetTestConfig(), nil)
	result, err := agg.ComputeMetrics(context.Background(), math.NaN(), -3, now)
	require.NoError(t, err)

	assert.Equal(t, 24.0, result.Window.Hours)
	assert.Equal(t, 10, result.TopN)
	assert.Equal(t, int64(1), result.Login.Attempts)
}

type failingSource struct{}

func (failingSource) CountLogins(context.Context, time.Time, time.Time) (int64, int64, error) {
	return 0, 0, errors.New("database is locked")
}

func (failingSource) GroupLogins(context.Context, audit.GroupDimension, time.Time, time.Time, bool) ([]audit.GroupCount, error) {
	return nil, errors.New("database is locked")
}

func TestComputeMetrics_StoreFailure(t *testing.T) {
	agg := NewAggregator(failingSource{}, nil, nil)

	_, err := agg.ComputeMetrics(context.Background(), 24, 10, testutils.BaseTime)

	require.Error(t, err)
	assert.Equal(t, apperror.KindStore, apperror.KindOf(err))
}
