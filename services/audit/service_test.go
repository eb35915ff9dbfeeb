package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/testutils"
)

// untouchableStore fails the test on any access.
type untouchableStore struct {
	GormStore
	t *testing.T
}

func (s *untouchableStore) Summarize(context.Context, Filter) (Summary, error) {
	s.t.Fatal("store accessed")
	return Summary{}, nil
}

func (s *untouchableStore) Count(context.Context, Filter) (int64, error) {
	s.t.Fatal("store accessed")
	return 0, nil
}

func (s *untouchableStore) Find(context.Context, Query) ([]Event, error) {
	s.t.Fatal("store accessed")
	return nil, nil
}

func newTestService(t *testing.T, exportCap string) (*Service, *GormStore) {
	t.Helper()
	store := newTestStore(t)
	cfg := testutils.GetTestConfig()
	cfg.Audit.ExportMaxRows = exportCap
	return NewService(store, cfg, nil), store
}

func TestService_QueryEvents(t *testing.T) {
	svc, store := newTestService(t, "20000")
	base := testutils.BaseTime

	for i := 0; i < 7; i++ {
		seedEvent(t, store, EventLogin, i%3 != 0, fmt.Sprintf("user%d@condo.test", i), "10.0.0.1", base.Add(time.Duration(i)*time.Minute))
	}
	seedEvent(t, store, EventLogout, true, "user1@condo.test", "10.0.0.1", base)

	result, err := svc.QueryEvents(context.Background(), Params{EventType: "login", Limit: "3", Page: "2", SortOrder: "asc"})
	require.NoError(t, err)

	assert.Equal(t, int64(7), result.Count)
	assert.Equal(t, Summary{Total: 7, Success: 4, Failure: 3, LoginFailures: 3}, result.Summary)
	assert.Equal(t, "createdAt", result.SortBy)
	assert.Equal(t, "asc", result.SortOrder)
	assert.Equal(t, 3, result.TotalPages)
	require.Len(t, result.Data, 3)
	assert.Equal(t, "user3@condo.test", *result.Data[0].UserEmail)
}

func TestService_QueryEvents_EmptyDataIsNotNil(t *testing.T) {
	svc, _ := newTestService(t, "20000")

	result, err := svc.QueryEvents(context.Background(), Params{})
	require.NoError(t, err)
	assert.NotNil(t, result.Data)
	assert.Equal(t, 0, result.TotalPages)
}

func TestService_QueryEvents_LimitClamped(t *testing.T) {
	svc, _ := newTestService(t, "20000")

	result, err := svc.QueryEvents(context.Background(), Params{Limit: "100000"})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, result.Limit)
}

func TestService_InvalidSortRejectedBeforeStoreAccess(t *testing.T) {
	svc := NewService(&untouchableStore{t: t}, testutils.GetTestConfig(), nil)

	_, err := svc.QueryEvents(context.Background(), Params{SortBy: "notAColumn"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	for _, col := range SortableColumns {
		assert.Contains(t, err.Error(), col)
	}

	_, err = svc.ExportMeta(context.Background(), Params{Success: "maybe"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestService_ExportMeta(t *testing.T) {
	svc, store := newTestService(t, "5")
	for i := 0; i < 8; i++ {
		seedEvent(t, store, EventLogin, true, "", "", testutils.BaseTime.Add(time.Duration(i)*time.Second))
	}

	t.Run("requested above cap", func(t *testing.T) {
		meta, err := svc.ExportMeta(context.Background(), Params{Limit: "50000"})
		require.NoError(t, err)
		assert.Equal(t, ExportMeta{Count: 8, RequestedLimit: 50000, MaxLimit: 5, EffectiveLimit: 5, Truncated: true}, *meta)
	})

	t.Run("within cap and count", func(t *testing.T) {
		meta, err := svc.ExportMeta(context.Background(), Params{Limit: "3", EventType: "nothing"})
		require.NoError(t, err)
		assert.Equal(t, ExportMeta{Count: 0, RequestedLimit: 3, MaxLimit: 5, EffectiveLimit: 3, Truncated: false}, *meta)
	})

	t.Run("no limit defaults to cap", func(t *testing.T) {
		meta, err := svc.ExportMeta(context.Background(), Params{})
		require.NoError(t, err)
		assert.Equal(t, 5, meta.RequestedLimit)
		assert.Equal(t, 5, meta.EffectiveLimit)
		assert.True(t, meta.Truncated)
	})
}

func TestService_ExportEvents(t *testing.T) {
	svc, store := newTestService(t, "4")
	tricky := `said "hi", then left`

	e := seedEvent(t, store, EventLogin, false, "ana@condo.test", "10.0.0.1", testutils.BaseTime)
	require.NoError(t, store.db.Model(e).Update("details", tricky).Error)
	for i := 1; i < 6; i++ {
		seedEvent(t, store, EventLogin, true, "", "", testutils.BaseTime.Add(-time.Duration(i)*time.Hour))
	}

	var buf bytes.Buffer
	meta, err := svc.ExportEvents(context.Background(), Params{Limit: "50000"}, &buf)
	require.NoError(t, err)
	assert.True(t, meta.Truncated)

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, ExportHeader, records[0])

	first := records[1]
	assert.Equal(t, testutils.BaseTime.Format(time.RFC3339Nano), first[0])
	assert.Equal(t, []string{"login", "false", "ana@condo.test", "", "10.0.0.1", tricky}, first[1:])

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n")
	assert.Equal(t, `"createdAt","eventType","success","userEmail","sessionId","ipAddress","details"`, lines[0])
	assert.Contains(t, lines[2], `"true","","",""`)
}

func TestEscapeCSV_RoundTrip(t *testing.T) {
	values := []string{``, `plain`, `a,b`, `"quoted"`, `x "y", z`, "multi\nline"}

	for _, v := range values {
		parsed, err := csv.NewReader(strings.NewReader(EscapeCSV(v) + "\n")).Read()
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		assert.Equal(t, v, parsed[0])
	}
}
