package logging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObserved(level zapcore.Level) (*Service, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return FromZap(zap.New(core)), logs
}

func TestNewService(t *testing.T) {
	t.Run("json to stdout", func(t *testing.T) {
		service, err := NewService(Config{Level: Info, Format: "json", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service.Logger())
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		service, err := NewService(Config{Level: Warn, Format: "console", OutputPath: logFile})
		require.NoError(t, err)

		service.Warn("written")
		_ = service.Sync()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "written")
	})
}

func TestService_NamedAndWith(t *testing.T) {
	service, logs := newObserved(zapcore.InfoLevel)

	service.Named("sessions").With(zap.Uint("user_id", 7)).Info("issued")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "sessions", entry.LoggerName)
	assert.Equal(t, uint64(7), entry.ContextMap()["user_id"])
}

func TestService_NilSafety(t *testing.T) {
	var service *Service

	assert.NotPanics(t, func() {
		service.Debug("x")
		service.Info("x")
		service.Warn("x")
		service.Error("x")
		service.Infof("%s", "x")
		service.Warnf("%s", "x")
		service.Named("a").With(zap.String("k", "v")).Info("x")
		assert.NoError(t, service.Sync())
	})
	assert.Nil(t, service.Logger())
	assert.Nil(t, FromZap(nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel(Debug))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel(Warn))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel(Error))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("verbose"))
}

func TestGormLogger_Trace(t *testing.T) {
	service, logs := newObserved(zapcore.DebugLevel)
	gl := NewGormLogger(service, 50*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("record not found is quiet", func(t *testing.T) {
		gl.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("errors are logged", func(t *testing.T) {
		gl.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "query failed", logs.TakeAll()[0].Message)
	})

	t.Run("slow queries warn", func(t *testing.T) {
		gl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("silent mode", func(t *testing.T) {
		gl.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("boom"))
		assert.Equal(t, 0, logs.Len())
	})
}
