package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/condoaccess/app"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/tech-arch1tect/condoaccess/services/securitymetrics"
	"github.com/tech-arch1tect/condoaccess/testutils"
	"go.uber.org/zap"
)

func testOptions(t *testing.T) *options {
	t.Helper()

	cfg := testutils.GetTestConfig()
	cfg.Database = config.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "cli.db"),
		AutoMigrate: true,
	}
	return &options{newBuilder: func() *app.AppBuilder {
		return app.NewApp().WithConfig(cfg).WithLogger(logging.FromZap(zap.NewNop()))
	}}
}

func execute(t *testing.T, opts *options, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand(opts)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestUserCreate(t *testing.T) {
	opts := testOptions(t)

	out, err := execute(t, opts, "user", "create", "--email", "Sindico@Condo.test", "--password", "Secret123", "--role", "admin")
	require.NoError(t, err)

	var user map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "sindico@condo.test", user["email"])
	assert.Equal(t, "admin", user["role"])
	assert.NotContains(t, out, "Secret123")

	_, err = execute(t, opts, "user", "create", "--email", "sindico@condo.test", "--password", "Secret123")
	assert.Error(t, err)

	_, err = execute(t, opts, "user", "create", "--email", "x@condo.test")
	assert.Error(t, err, "password is required")
}

func TestSnapshot(t *testing.T) {
	opts := testOptions(t)

	out, err := execute(t, opts, "snapshot", "--window-hours", "12", "--top-n", "abc")
	require.NoError(t, err)

	var snapshot securitymetrics.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))
	assert.Equal(t, 12.0, snapshot.WindowHours)
	assert.Equal(t, config.DefaultTopN, snapshot.TopN)
	assert.Zero(t, snapshot.LoginAttempts)
}

func TestPrune(t *testing.T) {
	opts := testOptions(t)

	out, err := execute(t, opts, "prune", "--target", "audit", "--audit-retention-days", "abc")
	require.NoError(t, err)

	var res securitymetrics.PruneResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, securitymetrics.TableAuditEvents, res.Table)
	assert.Equal(t, float64(config.DefaultAuditRetention), res.RetentionDays)

	_, err = execute(t, opts, "prune", "--target", "users")
	assert.ErrorContains(t, err, "invalid --target")
}
