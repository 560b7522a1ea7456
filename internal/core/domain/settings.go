package domain

// UserSettings holds the user-tunable knobs persisted by the storage layer.
// A single record exists, keyed by SettingsKey.
type UserSettings struct {
	Key              string `badgerhold:"key"`
	AutolockSeconds  int
	DefaultAccountID string
}

// SettingsKey is the key of the singleton UserSettings record.
const SettingsKey = "settings"
