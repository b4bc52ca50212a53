// Package worldstate polls the public Warframe world state and fans out
// typed change notifications.
package worldstate

import "time"

// Cetus is the Plains of Eidolon day/night cycle.
type Cetus struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	Activation time.Time `json:"activation"`
	Expiry     time.Time `json:"expiry"`
}

// IsNight reports whether the plains are in their night phase.
func (c Cetus) IsNight() bool { return c.State == "night" }

// Fissure is one active void fissure.
type Fissure struct {
	ID         string    `json:"id"`
	Node       string    `json:"node"`
	NodeKey    string    `json:"nodeKey"`
	MissionKey string    `json:"missionKey"`
	Tier       string    `json:"tier"`
	IsHard     bool      `json:"isHard"`
	IsStorm    bool      `json:"isStorm"`
	Activation time.Time `json:"activation"`
	Expiry     time.Time `json:"expiry"`
}

// Update is a change of a single-valued world state item.
type Update[T any] struct {
	Previous T
	Current  T
}

type Change int

const (
	Unchanged Change = iota
	Added
	Removed
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// NestedUpdate is a change to one element of a list-valued item.
type NestedUpdate[T any] struct {
	Item   T
	Change Change
}
