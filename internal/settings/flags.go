package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// Flags is the read/write view of the settings store used by the rest of
// the program. Reads fail closed: when the backend is unavailable a flag
// reads as false.
type Flags struct {
	store  Store
	logger *slog.Logger
}

// NewFlags wraps store.
func NewFlags(store Store, logger *slog.Logger) *Flags {
	return &Flags{
		store:  store,
		logger: logger.With("component", "settings"),
	}
}

// Store returns the underlying backend.
func (f *Flags) Store() Store { return f.store }

// ReadConfig returns the stored value of key. An absent key reads as false.
func (f *Flags) ReadConfig(ctx context.Context, key string) (bool, error) {
	v, _, err := f.store.Load(ctx, key)
	if err != nil {
		return false, err
	}
	return v, nil
}

// StoreConfig writes key and reports whether the write succeeded.
func (f *Flags) StoreConfig(ctx context.Context, key string, value bool) (bool, error) {
	if key == "" {
		return false, errors.New("settings key must not be empty")
	}
	if err := f.store.Save(ctx, key, value); err != nil {
		f.logger.Error("failed to store config", "key", key, "error", err)
		return false, err
	}
	f.logger.Info("config updated", "key", key, "value", value)
	return true, nil
}

// ClearConfigs removes every stored key.
func (f *Flags) ClearConfigs(ctx context.Context) error {
	if err := f.store.Clear(ctx); err != nil {
		return err
	}
	f.logger.Info("configs cleared")
	return nil
}

// All returns the value of every known key, followed by any extra stored keys.
// Absent known keys read as false.
func (f *Flags) All(ctx context.Context) (map[string]bool, error) {
	stored, err := f.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(Keys)+len(stored))
	for _, k := range Keys {
		out[k] = false
	}
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

// Enabled reads key and treats any backend error as false.
func (f *Flags) Enabled(ctx context.Context, key string) bool {
	v, err := f.ReadConfig(ctx, key)
	if err != nil {
		f.logger.Warn("config unavailable, treating as disabled", "key", key, "error", err)
		return false
	}
	return v
}

// InstallDefaults writes the default value of every known key that is not
// stored yet. Existing values are left untouched.
func (f *Flags) InstallDefaults(ctx context.Context) error {
	stored, err := f.store.All(ctx)
	if err != nil {
		return err
	}
	installed := 0
	for _, k := range Keys {
		if _, ok := stored[k]; ok {
			continue
		}
		if err := f.store.Save(ctx, k, Defaults[k]); err != nil {
			return err
		}
		installed++
	}
	if installed > 0 {
		f.logger.Info("default configs installed", "count", installed)
	}
	return nil
}

// Reset overwrites every known key with its default.
func (f *Flags) Reset(ctx context.Context) error {
	for _, k := range Keys {
		if err := f.store.Save(ctx, k, Defaults[k]); err != nil {
			return err
		}
	}
	f.logger.Info("configs reset to defaults")
	return nil
}

// CheckTrigger returns ErrTriggerDisabled when the whole tool is disabled or
// the trigger's UI flag is off.
func (f *Flags) CheckTrigger(ctx context.Context, t Trigger) error {
	if f.Enabled(ctx, KeyDisableWhole) {
		return fmt.Errorf("%s: %w", KeyDisableWhole, types.ErrTriggerDisabled)
	}
	if !f.Enabled(ctx, t.Key()) {
		return fmt.Errorf("%s: %w", t.Key(), types.ErrTriggerDisabled)
	}
	return nil
}

// Snapshot is the set of behaviour flags a run reads once at start.
type Snapshot struct {
	AutoFeedback    bool
	FeedbackDislike bool
	GotoLast        bool
	RandomInterval  bool
	IncreaseRandom  bool
	EnableLogging   bool
	DebugLogging    bool
}

// Snapshot reads the behaviour flags, failing closed on each.
func (f *Flags) Snapshot(ctx context.Context) Snapshot {
	return Snapshot{
		AutoFeedback:    f.Enabled(ctx, KeyAutoFeedback),
		FeedbackDislike: f.Enabled(ctx, KeyFeedbackDislike),
		GotoLast:        f.Enabled(ctx, KeyGotoLast),
		RandomInterval:  f.Enabled(ctx, KeyRandomInterval),
		IncreaseRandom:  f.Enabled(ctx, KeyIncreaseRandom),
		EnableLogging:   f.Enabled(ctx, KeyEnableLogging),
		DebugLogging:    f.Enabled(ctx, KeyEnableDebugLogging),
	}
}
