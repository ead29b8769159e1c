package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/internal/cli/config"
	"github.com/conduit-lang/objectmodel/internal/web/feed"
	"github.com/conduit-lang/objectmodel/runtime/settings"
)

// startLoop runs the runtime's loop until the returned stop is called.
func startLoop(rt *feedRuntime) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rt.model.loop.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewServeCommand()
	for _, flag := range []string{"host", "port", "count", "persist", "category", "token-subject"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected --%s flag to be registered", flag)
		}
	}
}

func TestFeedRuntimeServesRows(t *testing.T) {
	cfg := &config.Config{Settings: settings.Config{Backend: settings.MemoryBackend}}
	rt, err := newFeedRuntime(context.Background(), cfg, serveOptions{count: 3}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, rt.settings)
	assert.Nil(t, rt.auth)

	stop := startLoop(rt)
	defer func() {
		stop()
		require.NoError(t, rt.close())
	}()

	ts := httptest.NewServer(rt.server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/rows")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap feed.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "Item", snap.Type)
	assert.Len(t, snap.Rows, 3)
}

func TestFeedRuntimeRequiresToken(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{JWTSecret: "secret"}}
	rt, err := newFeedRuntime(context.Background(), cfg, serveOptions{count: 1}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, rt.auth)

	stop := startLoop(rt)
	defer func() {
		stop()
		rt.close()
	}()

	ts := httptest.NewServer(rt.server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/rows")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := rt.auth.Issue("alice")
	require.NoError(t, err)
	resp, err = http.Get(ts.URL + "/rows?token=" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFeedRuntimePersistsItems(t *testing.T) {
	cfg := &config.Config{Settings: settings.Config{
		Backend: settings.SQLiteBackend,
		Path:    filepath.Join(t.TempDir(), "settings.db"),
		Table:   "settings",
	}}
	opts := serveOptions{count: 2, persist: true, category: "items"}

	rt, err := newFeedRuntime(context.Background(), cfg, opts, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, rt.settings)
	assert.Len(t, rt.settings.Listeners(), 2)

	stop := startLoop(rt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.model.loop.Invoke(ctx, "test.rename", func() error {
		return rt.model.list.SetData(1, "name", "renamed")
	}))

	store := rt.settings.Store()
	require.Eventually(t, func() bool {
		v, err := store.Get(ctx, "items/objectName1/name")
		return err == nil && v == "renamed"
	}, 5*time.Second, 10*time.Millisecond)

	stop()
	require.NoError(t, rt.close())

	// A fresh runtime loads the saved name into the new items.
	rt, err = newFeedRuntime(context.Background(), cfg, opts, zap.NewNop())
	require.NoError(t, err)
	defer rt.close()
	assert.Equal(t, "renamed", rt.model.items[1].Name)
	assert.Equal(t, "1", rt.model.items[0].Name)
}
