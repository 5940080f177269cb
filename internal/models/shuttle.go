package models

import (
	"strconv"
	"strings"
)

type ShuttleType string

const (
	ShuttleArrival ShuttleType = "arrival"
	ShuttleReturn  ShuttleType = "return"
)

func (t ShuttleType) Valid() bool {
	return t == ShuttleArrival || t == ShuttleReturn
}

// Shuttle is a scheduled transport slot. Time and Type come from the catalog
// and are never touched by registration operations.
type Shuttle struct {
	ID            string         `json:"id" gorm:"primaryKey"`
	Time          string         `json:"time"`
	Type          ShuttleType    `json:"type"`
	Registrations []Registration `json:"registrations" gorm:"-"`
}

func (Shuttle) TableName() string { return "shuttles" }

// DefaultCatalog is the shuttle schedule seeded into an empty store.
func DefaultCatalog() []Shuttle {
	return []Shuttle{
		{ID: "arrival-shuttle-1", Time: "5:10 PM", Type: ShuttleArrival},
		{ID: "arrival-shuttle-2", Time: "5:40 PM", Type: ShuttleArrival},
		{ID: "return-shuttle-1", Time: "8:30 PM", Type: ShuttleReturn},
		{ID: "return-shuttle-2", Time: "9:00 PM", Type: ShuttleReturn},
	}
}

// TimeMinutes converts an "H:MM AM/PM" display time to minutes since
// midnight. A time without a modifier is read as 24-hour. Unparsable values
// return -1.
func TimeMinutes(s string) int {
	clock, modifier, _ := strings.Cut(strings.TrimSpace(s), " ")
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return -1
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return -1
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return -1
	}

	switch strings.ToUpper(strings.TrimSpace(modifier)) {
	case "PM":
		if hours < 12 {
			hours += 12
		}
	case "AM":
		if hours == 12 {
			hours = 0
		}
	case "":
	default:
		return -1
	}
	if hours < 0 || hours > 23 {
		return -1
	}
	return hours*60 + minutes
}

// TimeBefore orders shuttle times, pushing unparsable ones to the end.
func TimeBefore(a, b string) bool {
	ma, mb := TimeMinutes(a), TimeMinutes(b)
	if ma < 0 {
		return false
	}
	if mb < 0 {
		return true
	}
	return ma < mb
}
