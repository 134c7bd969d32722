package game

import "errors"

var (
	// ErrNotFound covers lookups of templates, rooms, and snapshots that
	// must be surfaced to the caller rather than silently ignored.
	ErrNotFound = errors.New("not found")

	// ErrPolicyViolation covers actions rejected before any mutation,
	// such as attacking in a safe room.
	ErrPolicyViolation = errors.New("policy violation")

	ErrPlayerExists   = errors.New("player already in world")
	ErrPlayerNotFound = errors.New("player not found")
)
