package model

import "time"

// Schedule is a persisted, user-managed recurring command.
// Time is "HH:MM" and Days a comma-separated list of weekdays (0 = Sunday);
// both are kept as text so the table stays readable by external dashboards.
type Schedule struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Time      string    `gorm:"size:5;not null" json:"time"`
	Command   string    `gorm:"size:16;not null" json:"command"`
	Days      string    `gorm:"size:32;not null" json:"days"`
	Enabled   bool      `gorm:"not null" json:"enabled"`
	CreatedAt time.Time `gorm:"not null;<-:create" json:"created_at"`
}
