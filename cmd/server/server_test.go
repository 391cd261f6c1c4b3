package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/taskflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_ShutsDownOnCancel(t *testing.T) {
	app := newTestApp(t, testConfig(config.EnvTest, ""))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.serve(ctx, listener, app.setupRouter())
	}()

	url := "http://" + listener.Addr().String() + "/api/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunMigrationCommand_RequiresDatabase(t *testing.T) {
	cfg := testConfig(config.EnvTest, "")
	app := newTestApp(t, cfg)

	err := runMigrationCommand(context.Background(), cfg, "up", app.logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestNewApplication_UsesMemoryStoreWithoutDatabase(t *testing.T) {
	app := newTestApp(t, testConfig(config.EnvTest, ""))

	assert.Nil(t, app.db)
	assert.NotNil(t, app.taskStore)
	assert.NotNil(t, app.taskService)
	assert.NotNil(t, app.loginSessions)
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TASKFLOW_SERVER_PORT", "")

	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4555\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4555, cfg.Server.Port)

	_, err = loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err, "an explicit file must exist")
}
