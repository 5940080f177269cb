package models

import (
	"time"
)

type SongRequest struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
	SongName    string    `json:"song_name"`
	Artist      *string   `json:"artist"`
	RequestedBy *string   `json:"requested_by"`
	PlayTime    *string   `json:"play_time"`
}

func (SongRequest) TableName() string { return "dj_requests" }
