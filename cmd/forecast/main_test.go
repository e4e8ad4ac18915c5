package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/stockcast/internal/app"
	"github.com/timmy/stockcast/internal/config"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/logger"
)

const engineOK = `{"success":true,"forecast":{"forecastData":[{"predicted":4}],"aiInsights":{"status":"Warning","eta_days":9,"recommended_reorder":40}}}`

// setupWorkspace writes a config pointing at a fresh sqlite file and the
// given engine, then seeds three items in the north depot.
func setupWorkspace(t *testing.T, engine http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
engine:
  base_url: %s
forecast:
  failure_threshold: 1
`, filepath.Join(dir, "stockcast.db"), srv.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	a, err := app.New(context.Background(), cfg, logger.New(&logger.Config{Level: "error", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	require.NoError(t, a.DB.Create(&[]domain.Item{
		{SKU: "A-1", Name: "Helmet", Depot: "north", Stock: 30},
		{SKU: "A-2", Name: "Gloves", Depot: "north", Stock: 12},
		{SKU: "A-3", Name: "Boots", Depot: "north", Stock: 40},
	}).Error)
	closeApp(a)

	return cfgPath
}

// resetFlags clears values left on the shared command tree by earlier runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	rootCmd.SetContext(context.Background())
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunListAndHistory(t *testing.T) {
	cfgPath := setupWorkspace(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(engineOK))
	})

	out, _, err := execute(t, "run", "--config", cfgPath, "--scope", "north", "--days", "45")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "Ledger for north: 0 critical, 3 watch, 0 safe")

	out, _, err = execute(t, "list", "--config", cfgPath, "--scope", "north", "--tier", "watch")
	require.NoError(t, err)
	assert.Contains(t, out, "A-1")
	assert.Contains(t, out, "A-2")
	assert.Contains(t, out, "0 critical, 3 watch, 0 safe (3 total)")

	out, _, err = execute(t, "history", "--config", cfgPath, "--scope", "north")
	require.NoError(t, err)
	assert.Contains(t, out, string(domain.JobStatusCompleted))
	assert.Contains(t, out, "3/3")

	out, _, err = execute(t, "scopes", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "north\n", out)
}

func TestRun_FailedJobReturnsError(t *testing.T) {
	cfgPath := setupWorkspace(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"model offline"}`))
	})

	_, errOut, err := execute(t, "run", "--config", cfgPath, "--scope", "north")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2/3 items")
	assert.Contains(t, errOut, "model offline")
}

func TestRun_RejectsInvalidOverrides(t *testing.T) {
	_, _, err := execute(t, "run", "--config", "unused.yaml", "--scope", "north", "--days=-3")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestList_RejectsUnknownTier(t *testing.T) {
	_, _, err := execute(t, "list", "--config", "unused.yaml", "--scope", "north", "--tier", "urgent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown risk tier")
}
