package model

import "time"

// LogEntry is a row of the append-only audit log.
type LogEntry struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Status    string    `gorm:"size:64;not null" json:"status"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

// TableName keeps the historical table name.
func (LogEntry) TableName() string {
	return "logs"
}
