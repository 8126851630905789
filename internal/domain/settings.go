package domain

import "time"

const SettingsID = "app_settings"

type AppSettings struct {
	ID              string    `json:"-" gorm:"primaryKey;size:64"`
	AcceptingOrders bool      `json:"acceptingOrders" gorm:"not null;default:false"`
	MaintenanceMode bool      `json:"maintenanceMode" gorm:"not null;default:false"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (AppSettings) TableName() string { return "app_settings" }

// DefaultSettings is the closed state used whenever nothing is stored yet.
func DefaultSettings(now time.Time) AppSettings {
	return AppSettings{
		ID:              SettingsID,
		AcceptingOrders: false,
		MaintenanceMode: false,
		UpdatedAt:       now,
	}
}

// SettingsPatch carries a partial update; nil fields are left untouched.
type SettingsPatch struct {
	AcceptingOrders *bool `json:"acceptingOrders,omitempty"`
	MaintenanceMode *bool `json:"maintenanceMode,omitempty"`
}

func (p SettingsPatch) Apply(s *AppSettings, now time.Time) {
	if p.AcceptingOrders != nil {
		s.AcceptingOrders = *p.AcceptingOrders
	}
	if p.MaintenanceMode != nil {
		s.MaintenanceMode = *p.MaintenanceMode
	}
	s.UpdatedAt = now
}
