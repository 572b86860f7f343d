package usecase

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog/internal/domain"
)

// SettingsUsecase is the process-wide configuration store: one
// Settings document in local storage, read with merge-over-defaults.
// Limit changes re-trim the plant collections through the onChange
// hook, never blocking writes.
type SettingsUsecase struct {
	mu       sync.RWMutex
	current  domain.Settings
	loaded   bool
	local    LocalStore
	onChange func(domain.Settings)
	log      *zap.SugaredLogger
}

func NewSettingsUsecase(local LocalStore, log *zap.SugaredLogger) *SettingsUsecase {
	return &SettingsUsecase{local: local, log: log}
}

// OnChange registers the hook invoked after every successful update.
func (uc *SettingsUsecase) OnChange(fn func(domain.Settings)) {
	uc.mu.Lock()
	uc.onChange = fn
	uc.mu.Unlock()
}

// Current returns the effective settings, reading and defaulting on
// first use. Read failures fall back to defaults; settings reads
// never fail the caller.
func (uc *SettingsUsecase) Current(ctx context.Context) domain.Settings {
	uc.mu.RLock()
	if uc.loaded {
		defer uc.mu.RUnlock()
		return uc.current
	}
	uc.mu.RUnlock()

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.loaded {
		return uc.current
	}

	var stored domain.Settings
	if _, err := uc.local.Get(ctx, LocalKeySettings, &stored); err != nil {
		uc.log.Warnw("settings read failed, using defaults", "error", err)
	}
	uc.current = stored.MergeDefaults()
	uc.loaded = true
	return uc.current
}

// Update persists new settings merged over defaults and fires the
// change hook.
func (uc *SettingsUsecase) Update(ctx context.Context, settings domain.Settings) error {
	merged := settings.MergeDefaults()

	uc.mu.Lock()
	if err := uc.local.Set(ctx, LocalKeySettings, merged); err != nil {
		uc.mu.Unlock()
		return errors.Wrap(err, "persist settings")
	}
	uc.current = merged
	uc.loaded = true
	hook := uc.onChange
	uc.mu.Unlock()

	if hook != nil {
		hook(merged)
	}
	return nil
}

// Language returns the persisted language preference, falling back to
// the settings document.
func (uc *SettingsUsecase) Language(ctx context.Context) string {
	var lang string
	if found, err := uc.local.Get(ctx, LocalKeyLanguage, &lang); err == nil && found && lang != "" {
		return lang
	}
	return uc.Current(ctx).Language
}

// SetLanguage persists the language preference.
func (uc *SettingsUsecase) SetLanguage(ctx context.Context, lang string) error {
	return uc.local.Set(ctx, LocalKeyLanguage, lang)
}
