package domain

import "context"

// SettingsRepository is the persistence boundary for user settings.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (*UserSettings, error)
	UpdateSettings(ctx context.Context, settings *UserSettings) error
}
