package dbbadger

import (
	"context"
	"errors"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dappward/walletd/internal/core/domain"
)

type settingsRepositoryImpl struct {
	store *badgerhold.Store
}

func newSettingsRepository(store *badgerhold.Store) domain.SettingsRepository {
	return settingsRepositoryImpl{store}
}

func (r settingsRepositoryImpl) GetSettings(
	_ context.Context,
) (*domain.UserSettings, error) {
	var settings domain.UserSettings
	if err := r.store.Get(domain.SettingsKey, &settings); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return &domain.UserSettings{Key: domain.SettingsKey}, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r settingsRepositoryImpl) UpdateSettings(
	_ context.Context, settings *domain.UserSettings,
) error {
	s := *settings
	s.Key = domain.SettingsKey
	return r.store.Upsert(domain.SettingsKey, s)
}
