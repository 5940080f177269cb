// Package capacity holds the pure occupancy rules for shuttles. The same
// guard serves new bookings and edits; an edit excludes the registration's
// own current party so it is not counted twice.
package capacity

import (
	"errors"
	"fmt"
	"math"

	"github.com/gdg-garage/shuttle-planner/internal/models"
)

// DefaultCapacity is the per-shuttle passenger ceiling when none is configured.
const DefaultCapacity = 18

var ErrInvalidInput = errors.New("invalid input")

type Level string

const (
	LevelGreen  Level = "green"
	LevelYellow Level = "yellow"
	LevelRed    Level = "red"
)

type Policy struct {
	Capacity int
}

func NewPolicy(capacity int) Policy {
	return Policy{Capacity: capacity}
}

// PartySize is guests plus the registrant.
func PartySize(guests int) (int, error) {
	if guests < 0 {
		return 0, fmt.Errorf("%w: guests must not be negative, got %d", ErrInvalidInput, guests)
	}
	if guests == math.MaxInt {
		return 0, fmt.Errorf("%w: too many guests", ErrInvalidInput)
	}
	return guests + 1, nil
}

func Occupancy(shuttle models.Shuttle) int {
	total := 0
	for _, reg := range shuttle.Registrations {
		total += reg.PartySize()
	}
	return total
}

// occupancyExcluding skips the registration with id; an empty id skips nothing.
func occupancyExcluding(shuttle models.Shuttle, id string) int {
	total := 0
	for _, reg := range shuttle.Registrations {
		if id != "" && reg.ID == id {
			continue
		}
		total += reg.PartySize()
	}
	return total
}

// WouldFit reports whether a party of partySize fits on the shuttle once
// the registration excludingID (if any) is taken off.
func (p Policy) WouldFit(shuttle models.Shuttle, partySize int, excludingID string) (bool, error) {
	if partySize < 1 {
		return false, fmt.Errorf("%w: party size must be at least 1, got %d", ErrInvalidInput, partySize)
	}
	// Compared as a difference so huge parties cannot wrap around.
	return partySize <= p.Capacity-occupancyExcluding(shuttle, excludingID), nil
}

// IsFull blocks selection of the shuttle whatever the requested party size.
func (p Policy) IsFull(shuttle models.Shuttle) bool {
	return Occupancy(shuttle) >= p.Capacity
}

// Remaining never goes below zero, even for an overbooked shuttle.
func (p Policy) Remaining(shuttle models.Shuttle) int {
	return max(p.Capacity-Occupancy(shuttle), 0)
}

// Level is the fill indicator shown on a shuttle card.
func (p Policy) Level(shuttle models.Shuttle) Level {
	if p.Capacity <= 0 {
		return LevelRed
	}
	percent := float64(Occupancy(shuttle)) / float64(p.Capacity) * 100
	switch {
	case percent < 70:
		return LevelGreen
	case percent < 90:
		return LevelYellow
	default:
		return LevelRed
	}
}
