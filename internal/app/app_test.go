package app

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/buddyinbox/internal/config"
	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataPath = filepath.Join(t.TempDir(), "buddy.db")
	cfg.BackupDir = t.TempDir()
	cfg.WatchInterval = 20 * time.Millisecond
	cfg.LogLevel = "error"
	return cfg
}

func TestRun_REPLSessionPersists(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	in := strings.NewReader("login ann\nsend hello from the prompt\nexit\n")
	a, err := NewApp(ctx, cfg, in, io.Discard, io.Discard)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after exit")
	}

	repo, err := localstore.OpenSQLite(ctx, cfg.DataPath)
	require.NoError(t, err)
	defer repo.Close()
	store := localstore.NewStore(repo, logging.Nop())

	var user string
	require.True(t, store.GetJSON(ctx, localstore.KeyCurrentUser, &user))
	assert.Equal(t, "ann", user)

	var msgs []models.Message
	require.True(t, store.GetJSON(ctx, localstore.KeyMessages, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello from the prompt", msgs[0].Body)
}

func TestRun_HeadlessStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Headless = true

	a, err := NewApp(context.Background(), cfg, strings.NewReader(""), io.Discard, io.Discard)
	require.NoError(t, err)
	assert.Nil(t, a.cli)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewApp_BadDataPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataPath = filepath.Join(t.TempDir(), "missing", "dir", "buddy.db")

	_, err := NewApp(context.Background(), cfg, strings.NewReader(""), io.Discard, io.Discard)
	require.Error(t, err)
}
