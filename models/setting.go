package models

import "time"

// Setting is a single key/value configuration row.
type Setting struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text;not null;default:''"`
	UpdatedAt time.Time
}
