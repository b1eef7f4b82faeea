package models

// Settings holds per-room display and behavior settings.
type Settings struct {
	Theme        string `json:"theme"`
	SoundEnabled bool   `json:"sound_enabled"`
	AutoAdvance  bool   `json:"auto_advance"`
}

// DefaultSettings returns the settings a freshly created room starts with.
func DefaultSettings() Settings {
	return Settings{
		Theme:        "default",
		SoundEnabled: true,
		AutoAdvance:  false,
	}
}

// SettingsUpdate carries optional settings fields; nil fields are left
// unchanged when applied.
type SettingsUpdate struct {
	Theme        *string `json:"theme,omitempty"`
	SoundEnabled *bool   `json:"sound_enabled,omitempty"`
	AutoAdvance  *bool   `json:"auto_advance,omitempty"`
}

// Apply merges non-nil fields of the update into s.
func (s *Settings) Apply(u SettingsUpdate) {
	if u.Theme != nil {
		s.Theme = *u.Theme
	}
	if u.SoundEnabled != nil {
		s.SoundEnabled = *u.SoundEnabled
	}
	if u.AutoAdvance != nil {
		s.AutoAdvance = *u.AutoAdvance
	}
}
