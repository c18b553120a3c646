package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeno-search/zeno/internal/config"
	"github.com/zeno-search/zeno/internal/daemon"
	"github.com/zeno-search/zeno/internal/store"
	"github.com/zeno-search/zeno/pkg/version"
)

// isolate points zeno's data and config directories at a temp dir and
// runs the test from inside it.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("ZENO_HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
	t.Setenv("NO_COLOR", "1")
	t.Chdir(home)
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "add", "search", "docs", "delete", "status", "stop", "logs", "mcp", "init", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "zeno version "+version.Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "zeno")
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, "commit")

	out, err = run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))

	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info["version"])
	assert.Contains(t, info, "go_version")
}

func TestInitCmd(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, config.ProjectConfigName)

	out, err := run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
	assert.FileExists(t, path)

	// The template is all comments, so it loads as the defaults.
	cfg, err := config.Load(home)
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig().Server, cfg.Server)

	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0o644))
	out, err = run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))

	_, err = run(t, "init", "--force")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "# mine\n", string(data))
}

func TestStatusCmd_NotRunning(t *testing.T) {
	isolate(t)

	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")

	out, err = run(t, "status", "--json")
	require.NoError(t, err)
	var status daemon.StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.False(t, status.Running)
}

func TestStatusCmd_ReportsStalePIDFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "zeno.pid"), []byte("99999999\n"), 0o644))

	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Stale PID file")
}

func TestStopCmd_NotRunning(t *testing.T) {
	isolate(t)

	out, err := run(t, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

func TestLogsCmd(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "server.log")
	lines := []string{
		`{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"doc_ingested","id":"a1"}`,
		`{"time":"2026-01-02T10:00:01Z","level":"WARN","msg":"scrape_failed","url":"https://example.com"}`,
		`{"time":"2026-01-02T10:00:02Z","level":"DEBUG","msg":"request"}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	out, err := run(t, "logs", "--file", path, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "doc_ingested")
	assert.Contains(t, out, "scrape_failed")

	out, err = run(t, "logs", "--file", path, "--no-color", "--level", "warn")
	require.NoError(t, err)
	assert.NotContains(t, out, "doc_ingested")
	assert.Contains(t, out, "scrape_failed")

	out, err = run(t, "logs", "--file", path, "--no-color", "--grep", "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "doc_ingested")
	assert.NotContains(t, out, "scrape_failed")

	_, err = run(t, "logs", "--file", path, "--grep", "(")
	assert.Error(t, err)
}

func TestLocalWorkflow(t *testing.T) {
	isolate(t)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<html><head><title>Gradient Descent</title>
<meta name="description" content="optimization notes"></head>
<body><p>stochastic gradient descent converges slowly</p></body></html>`)
	}))
	defer page.Close()

	out, err := run(t, "add", page.URL, "--local", "--json")
	require.NoError(t, err)
	var added daemon.IndexResult
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "Gradient Descent", added.Title)

	out, err = run(t, "search", "stochastic", "--local", "--json")
	require.NoError(t, err)
	var hits []store.Hit
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, added.ID, hits[0].ID)

	out, err = run(t, "search", "stochastic", "--local")
	require.NoError(t, err)
	assert.Contains(t, out, "Gradient Descent")

	out, err = run(t, "search", "stochastic", "--local", "--json", "--limit", "0")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	out, err = run(t, "docs", "--json")
	require.NoError(t, err)
	var recs []store.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, added.ID, recs[0].ID)

	out, err = run(t, "delete", added.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	out, err = run(t, "search", "stochastic", "--local", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	out, err = run(t, "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents indexed")
}

func TestDeleteCmd_UnknownID(t *testing.T) {
	isolate(t)

	_, err := run(t, "delete", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSearchCmd_RejectsBadQuery(t *testing.T) {
	isolate(t)

	_, err := run(t, "search", "title:(", "--local")
	assert.Error(t, err)
}

func TestDoctorCmd(t *testing.T) {
	isolate(t)
	t.Setenv("ZENO_ADDR", "127.0.0.1:0")

	out, err := run(t, "doctor", "--json")
	require.NoError(t, err)

	var results []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "write_permissions", results[0].Name)
	assert.Equal(t, "PASS", results[0].Status)
}
