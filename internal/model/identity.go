package model

import (
	"fmt"
	"math/rand"
)

// Mode selects which chat subsystem is active. At most one at a time.
type Mode string

const (
	ModeNone    Mode = ""
	ModeGroup   Mode = "group"
	ModePrivate Mode = "private"
)

// NewGuestName generates the ephemeral display name for this client
// session: "Guest" plus four digits. Stable for the session's lifetime.
func NewGuestName() string {
	return fmt.Sprintf("Guest%d", 1000+rand.Intn(9000))
}
