package scanner

import "time"

// Class is the timing classification of a printable key.
type Class int

const (
	ClassHuman Class = iota + 1
	ClassBurst
)

// String returns "human" or "burst".
func (c Class) String() string {
	if c == ClassBurst {
		return "burst"
	}
	return "human"
}

// Classify labels a key pressed at now and records now as the last key time.
//
// A key is part of a burst when it follows the previous key by less than
// BurstThreshold, or by more than FirstCharGrace (the first key of a fresh
// scan has no useful predecessor). Anything in between is human typing.
//
// The zero lastCharAt (no key seen yet) always yields ClassBurst.
func Classify(lastCharAt *time.Time, now time.Time, cfg Config) Class {
	elapsed := now.Sub(*lastCharAt)
	*lastCharAt = now

	if elapsed < cfg.BurstThreshold || elapsed > cfg.FirstCharGrace {
		return ClassBurst
	}
	return ClassHuman
}
