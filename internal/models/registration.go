package models

import (
	"time"
)

// Registration books the registrant plus Guests additional passengers on
// one shuttle. A registration never moves to another shuttle.
type Registration struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ShuttleID string    `json:"-" gorm:"index"`
	Name      string    `json:"name"`
	Guests    int       `json:"guests"`
	Timestamp time.Time `json:"timestamp"`
}

func (Registration) TableName() string { return "registrations" }

// PartySize counts the registrant as one passenger.
func (r Registration) PartySize() int {
	return r.Guests + 1
}
