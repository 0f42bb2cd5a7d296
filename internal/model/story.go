package model

import "time"

// SuccessStory は成約したお客様の体験談を表す。
type SuccessStory struct {
	ID           int64
	CustomerName string
	Location     string
	PhotoURL     string
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
