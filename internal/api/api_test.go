package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adlikkk/gamehost-one/internal/auth"
	"github.com/Adlikkk/gamehost-one/internal/backup"
	"github.com/Adlikkk/gamehost-one/internal/config"
	"github.com/Adlikkk/gamehost-one/internal/console"
	"github.com/Adlikkk/gamehost-one/internal/events"
	"github.com/Adlikkk/gamehost-one/internal/fetch"
	"github.com/Adlikkk/gamehost-one/internal/logging"
	"github.com/Adlikkk/gamehost-one/internal/models"
	"github.com/Adlikkk/gamehost-one/internal/process"
	"github.com/Adlikkk/gamehost-one/internal/worldio"
)

type testEnv struct {
	router *gin.Engine
	cfg    *config.Config
	buffer *console.Buffer
}

func newTestEnv(t *testing.T, authDisabled bool) *testEnv {
	t.Helper()

	base := t.TempDir()
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret",
			TokenDuration: "1h",
			Disabled:      authDisabled,
		},
		Storage: config.StorageConfig{
			ConfigDir:  filepath.Join(base, "configs"),
			ServersDir: filepath.Join(base, "servers"),
			BackupDir:  filepath.Join(base, "backups"),
			RuntimeDir: filepath.Join(base, "runtime"),
			LogsDir:    filepath.Join(base, "logs"),
			DataDir:    filepath.Join(base, "data"),
		},
	}
	for _, dir := range []string{cfg.Storage.ConfigDir, cfg.Storage.ServersDir, cfg.Storage.BackupDir, cfg.Storage.DataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	registry, err := config.NewRegistry(cfg.Storage.ConfigDir)
	if err != nil {
		t.Fatal(err)
	}
	meta := config.NewMetaStore(cfg.Storage.ConfigDir)

	activity, err := logging.NewActivityLogger(filepath.Join(base, "activity.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { activity.Close() })

	buffer := console.NewBuffer(100)
	proc := process.NewManager(nil, buffer, "")
	stager := worldio.NewStager(filepath.Join(cfg.Storage.DataDir, "staging"))
	service := backup.NewService(cfg.Storage.BackupDir, registry, meta, proc, nil, activity, stager, nil)
	hub := events.NewHub()

	router := SetupRouter(cfg, registry, meta, proc, service, fetch.NewFetcher(nil), activity, hub, buffer, nil)
	return &testEnv{router: router, cfg: cfg, buffer: buffer}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func createServer(t *testing.T, env *testEnv, name string) models.ServerConfig {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/servers", gin.H{
		"name":      name,
		"memory_gb": 2,
		"port":      25570,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create server returned %d: %s", w.Code, w.Body.String())
	}
	return decode[models.ServerConfig](t, w)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestServerLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	server := createServer(t, env, "My Server")
	if server.ID == "" {
		t.Fatal("created server has no id")
	}

	// Scaffolding should have produced the accepted EULA and properties.
	for _, name := range []string{"eula.txt", "server.properties", "user_jvm_args.txt"} {
		if _, err := os.Stat(filepath.Join(server.InstallDir, name)); err != nil {
			t.Errorf("scaffold file %s missing: %v", name, err)
		}
	}

	w := env.do(t, http.MethodGet, "/api/v1/servers", nil)
	servers := decode[[]models.ServerConfig](t, w)
	if len(servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(servers))
	}

	w = env.do(t, http.MethodGet, "/api/v1/servers/"+server.ID+"/status", nil)
	status := decode[models.StatusResponse](t, w)
	if status.State != models.StateStopped {
		t.Errorf("expected stopped state, got %s", status.State)
	}

	// Duplicate names are refused.
	w = env.do(t, http.MethodPost, "/api/v1/servers", gin.H{"name": "my server"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/servers/"+server.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete returned %d", w.Code)
	}
	if _, err := os.Stat(server.InstallDir); !os.IsNotExist(err) {
		t.Error("install directory should be removed with the server")
	}
}

func TestCommandOnStoppedServer(t *testing.T) {
	env := newTestEnv(t, true)
	server := createServer(t, env, "cmd-test")

	w := env.do(t, http.MethodPost, "/api/v1/servers/"+server.ID+"/command", gin.H{"command": "say hi"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for command on stopped server, got %d", w.Code)
	}
}

func TestStartConflictBetweenServers(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake runtime requires a POSIX shell")
	}
	env := newTestEnv(t, true)

	// A fake managed runtime under the runtime dir; reads stdin until "stop".
	binDir := filepath.Join(env.cfg.Storage.RuntimeDir, "jdk", "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatal(err)
	}
	script := `#!/bin/sh
echo "Done (0.1s)!"
while read line; do
  if [ "$line" = "stop" ]; then exit 0; fi
done
`
	if err := os.WriteFile(filepath.Join(binDir, "java"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	alpha := createServer(t, env, "Alpha")
	beta := createServer(t, env, "Beta")
	for _, srv := range []models.ServerConfig{alpha, beta} {
		if err := os.WriteFile(filepath.Join(srv.InstallDir, "server.jar"), []byte("jar"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if w := env.do(t, http.MethodPost, "/api/v1/servers/"+alpha.ID+"/start", nil); w.Code != http.StatusOK {
		t.Fatalf("start alpha returned %d: %s", w.Code, w.Body.String())
	}
	defer env.do(t, http.MethodPost, "/api/v1/servers/"+alpha.ID+"/stop", nil)

	if w := env.do(t, http.MethodPost, "/api/v1/servers/"+beta.ID+"/start", nil); w.Code != http.StatusConflict {
		t.Fatalf("start beta while alpha is active returned %d, want 409", w.Code)
	}

	// Alpha keeps the process slot and its state.
	w := env.do(t, http.MethodGet, "/api/v1/servers/"+alpha.ID+"/status", nil)
	status := decode[models.StatusResponse](t, w)
	if status.ServerID != alpha.ID {
		t.Errorf("status server id = %q, want %q", status.ServerID, alpha.ID)
	}
	if status.State != models.StateStarting && status.State != models.StateRunning {
		t.Errorf("alpha state = %s after refused start of beta, want starting or running", status.State)
	}

	w = env.do(t, http.MethodGet, "/api/v1/servers/"+beta.ID+"/status", nil)
	if got := decode[models.StatusResponse](t, w).State; got != models.StateStopped {
		t.Errorf("beta state = %s, want stopped", got)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t, true)
	server := createServer(t, env, "settings-test")

	w := env.do(t, http.MethodGet, "/api/v1/servers/"+server.ID+"/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get settings returned %d: %s", w.Code, w.Body.String())
	}
	current := decode[models.ServerSettings](t, w)

	current.MaxPlayers = 32
	current.Difficulty = "hard"
	w = env.do(t, http.MethodPut, "/api/v1/servers/"+server.ID+"/settings", current)
	if w.Code != http.StatusOK {
		t.Fatalf("update settings returned %d: %s", w.Code, w.Body.String())
	}
	result := decode[models.ApplyResult](t, w)
	if !result.Applied || result.PendingRestart {
		t.Errorf("stopped server should apply immediately: %+v", result)
	}

	w = env.do(t, http.MethodGet, "/api/v1/servers/"+server.ID+"/settings", nil)
	reloaded := decode[models.ServerSettings](t, w)
	if reloaded.MaxPlayers != 32 || reloaded.Difficulty != "hard" {
		t.Errorf("settings not persisted: %+v", reloaded)
	}
}

func TestBackupEndpoints(t *testing.T) {
	env := newTestEnv(t, true)
	server := createServer(t, env, "backup-test")

	worldDir := filepath.Join(server.InstallDir, "world")
	if err := os.MkdirAll(filepath.Join(worldDir, "region"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(worldDir, "level.dat"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/api/v1/servers/"+server.ID+"/backups", gin.H{"include_secondary": false})
	if w.Code != http.StatusCreated {
		t.Fatalf("create backup returned %d: %s", w.Code, w.Body.String())
	}
	entry := decode[models.BackupEntry](t, w)
	if entry.Reason != "manual" {
		t.Errorf("expected default reason manual, got %q", entry.Reason)
	}

	w = env.do(t, http.MethodGet, "/api/v1/servers/"+server.ID+"/backups", nil)
	entries := decode[[]models.BackupEntry](t, w)
	if len(entries) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(entries))
	}

	w = env.do(t, http.MethodPost, "/api/v1/servers/"+server.ID+"/backups/"+entry.ID+"/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore returned %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodDelete, "/api/v1/servers/"+server.ID+"/backups/"+entry.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete backup returned %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/servers/"+server.ID+"/backups", nil)
	entries = decode[[]models.BackupEntry](t, w)
	if len(entries) != 0 {
		t.Fatalf("expected no backups after delete, got %d", len(entries))
	}
}

func TestConsoleEndpointFiltersLines(t *testing.T) {
	env := newTestEnv(t, true)
	server := createServer(t, env, "console-test")

	env.buffer.Append("stdout", "[Server] Done (3.2s)! For help, type \"help\"")
	env.buffer.Append("stdout", "[Server] ERROR: something broke")

	w := env.do(t, http.MethodGet, "/api/v1/servers/"+server.ID+"/console?filter=errors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("console returned %d", w.Code)
	}
	lines := decode[[]console.Line](t, w)
	if len(lines) != 1 {
		t.Fatalf("expected 1 error line, got %d", len(lines))
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/servers", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	manager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := manager.GenerateToken("tests")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/servers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}
