// Package acceptance tracks whether the client reported an accepted match.
package acceptance

import "sync/atomic"

// Flag is written by the game-state observer and read by the search loop.
type Flag struct {
	accepted atomic.Bool
}

func NewFlag() *Flag {
	return &Flag{}
}

// Set marks the match as accepted and reports whether it was unset before.
func (f *Flag) Set() bool {
	return f.accepted.CompareAndSwap(false, true)
}

func (f *Flag) Reset() {
	f.accepted.Store(false)
}

func (f *Flag) Accepted() bool {
	return f.accepted.Load()
}
