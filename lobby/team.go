package lobby

import (
	"context"
	"strings"
)

// Member is one externally managed account and its client process.
type Member interface {
	Login() string
	ProcessID() uint32
	Valid() bool
}

// AccountSource lists members in account-list order.
type AccountSource interface {
	Members() []Member
}

// Clipboard is the shared clipboard the bots copy their invite reference to.
type Clipboard interface {
	Text() (string, error)
	// Paste pastes the clipboard into the focused window.
	Paste(ctx context.Context) error
}

// AcceptSignal is the externally written "match accepted" flag. The manager
// only ever reads it, apart from resetting it when a search starts.
type AcceptSignal interface {
	Accepted() bool
	Reset()
}

// Team is one lobby: a leader that searches and the bots it invited.
type Team struct {
	Leader Member
	Bots   []Member
}

// Members returns the leader followed by the bots.
func (t *Team) Members() []Member {
	if t == nil {
		return nil
	}
	out := make([]Member, 0, 1+len(t.Bots))
	out = append(out, t.Leader)
	return append(out, t.Bots...)
}

func (t *Team) Logins() []string {
	return logins(t.Members())
}

func (t *Team) String() string {
	if t == nil {
		return "<none>"
	}
	bots := logins(t.Bots)
	return t.Leader.Login() + " + [" + strings.Join(bots, ", ") + "]"
}

func logins(members []Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Login())
	}
	return out
}
