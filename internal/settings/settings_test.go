package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBackendDown = errors.New("backend down")

func (brokenStore) Load(context.Context, string) (bool, bool, error) {
	return true, true, errBackendDown
}

func (brokenStore) Save(context.Context, string, bool) error { return errBackendDown }

func (brokenStore) Clear(context.Context) error { return errBackendDown }

func (brokenStore) All(context.Context) (map[string]bool, error) { return nil, errBackendDown }

func (brokenStore) Close() error { return nil }

func (brokenStore) Name() string { return "broken" }

func newFileFlags(t *testing.T) (*Flags, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewFileStore(path, testLogger())
	require.NoError(t, err)
	return NewFlags(store, testLogger()), path
}

func TestReadStoreClear(t *testing.T) {
	ctx := context.Background()
	flags, _ := newFileFlags(t)

	v, err := flags.ReadConfig(ctx, KeyGotoLast)
	require.NoError(t, err)
	assert.False(t, v, "absent key reads false")

	ok, err := flags.StoreConfig(ctx, KeyGotoLast, true)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = flags.ReadConfig(ctx, KeyGotoLast)
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, flags.ClearConfigs(ctx))
	v, err = flags.ReadConfig(ctx, KeyGotoLast)
	require.NoError(t, err)
	assert.False(t, v)

	ok, err = flags.StoreConfig(ctx, "", true)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	flags, path := newFileFlags(t)
	_, err := flags.StoreConfig(ctx, KeyRandomInterval, true)
	require.NoError(t, err)

	reopened, err := NewFileStore(path, testLogger())
	require.NoError(t, err)
	v, found, err := reopened.Load(ctx, KeyRandomInterval)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, v)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path, testLogger())
	var se *types.StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "file", se.Backend)
}

func TestInstallDefaultsKeepsExisting(t *testing.T) {
	ctx := context.Background()
	flags, _ := newFileFlags(t)
	_, err := flags.StoreConfig(ctx, KeyUIAdd1000, false)
	require.NoError(t, err)

	require.NoError(t, flags.InstallDefaults(ctx))

	all, err := flags.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(Keys))
	assert.False(t, all[KeyUIAdd1000], "existing value is kept")
	assert.True(t, all[KeyUIAddAll])
	assert.True(t, all[KeyAutoFeedback])
	assert.False(t, all[KeyFeedbackDislike])
	assert.True(t, all[KeyEnableLogging])

	require.NoError(t, flags.Reset(ctx))
	all, err = flags.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults, all)
}

func TestDefaultsCoverEveryKey(t *testing.T) {
	assert.Len(t, Keys, 15)
	for _, k := range Keys {
		assert.True(t, IsKnown(k), k)
	}
	assert.Equal(t, KeyUIAddNext100, TriggerPreload100.Key())
}

func TestCheckTrigger(t *testing.T) {
	ctx := context.Background()
	flags, _ := newFileFlags(t)
	require.NoError(t, flags.InstallDefaults(ctx))

	assert.NoError(t, flags.CheckTrigger(ctx, TriggerSave1000))
	assert.ErrorIs(t, flags.CheckTrigger(ctx, TriggerSave10000), types.ErrTriggerDisabled)

	_, err := flags.StoreConfig(ctx, KeyDisableWhole, true)
	require.NoError(t, err)
	assert.ErrorIs(t, flags.CheckTrigger(ctx, TriggerSave1000), types.ErrTriggerDisabled)
}

func TestFailsClosed(t *testing.T) {
	ctx := context.Background()
	flags := NewFlags(brokenStore{}, testLogger())

	_, err := flags.ReadConfig(ctx, KeyAutoFeedback)
	assert.ErrorIs(t, err, errBackendDown)
	assert.False(t, flags.Enabled(ctx, KeyAutoFeedback))
	assert.Equal(t, Snapshot{}, flags.Snapshot(ctx))
	assert.ErrorIs(t, flags.CheckTrigger(ctx, TriggerSaveAll), types.ErrTriggerDisabled)

	ok, err := flags.StoreConfig(ctx, KeyAutoFeedback, true)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	cfg := config.DefaultConfig().Settings
	cfg.Path = filepath.Join(t.TempDir(), "s.json")
	store, err := Open(context.Background(), &cfg, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "file", store.Name())
	require.NoError(t, store.Close())

	cfg.Backend = "etcd"
	_, err = Open(context.Background(), &cfg, testLogger())
	assert.Error(t, err)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("COMMENTGOAT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("COMMENTGOAT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	store, err := NewMongoStore(ctx, uri, "commentgoat_test", "settings", testLogger())
	require.NoError(t, err)
	defer store.Close()

	flags := NewFlags(store, testLogger())
	require.NoError(t, flags.ClearConfigs(ctx))
	require.NoError(t, flags.InstallDefaults(ctx))
	all, err := flags.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults, all)
}

func TestResolveTrigger(t *testing.T) {
	trig, policy, err := ResolveTrigger("COUNT", 10000, 20)
	require.NoError(t, err)
	assert.Equal(t, TriggerSave10000, trig)
	assert.Equal(t, 500, policy.DepthPages)

	trig, policy, err = ResolveTrigger("days", 7, 20)
	require.NoError(t, err)
	assert.Equal(t, "CONFIG_UI_ADD_7DAY", trig.Key())
	assert.Equal(t, 168, policy.Hours)

	trig, policy, err = ResolveTrigger("next", 20, 20)
	require.NoError(t, err)
	assert.Equal(t, TriggerPreload20, trig)
	assert.Equal(t, 1, policy.DepthPages)

	trig, _, err = ResolveTrigger("all", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, TriggerSaveAll, trig)

	for _, bad := range []struct {
		kind  string
		value int
	}{{"count", 500}, {"days", 3}, {"next", 50}, {"weeks", 1}} {
		_, _, err := ResolveTrigger(bad.kind, bad.value, 20)
		assert.Error(t, err, "%s %d", bad.kind, bad.value)
	}
}
