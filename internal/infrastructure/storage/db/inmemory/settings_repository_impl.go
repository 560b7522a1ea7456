package inmemory

import (
	"context"

	"github.com/dappward/walletd/internal/core/domain"
)

type settingsRepositoryImpl struct {
	locker
	settings *domain.UserSettings
}

func newSettingsRepository() domain.SettingsRepository {
	return &settingsRepositoryImpl{locker: newLocker()}
}

func (r *settingsRepositoryImpl) GetSettings(
	_ context.Context,
) (*domain.UserSettings, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.settings == nil {
		return &domain.UserSettings{Key: domain.SettingsKey}, nil
	}
	settings := *r.settings
	return &settings, nil
}

func (r *settingsRepositoryImpl) UpdateSettings(
	_ context.Context, settings *domain.UserSettings,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	s := *settings
	s.Key = domain.SettingsKey
	r.settings = &s
	return nil
}
