package lobby

import (
	"context"
	"fmt"
	"github.com/stretchr/testify/require"
	"lobby-pilot/input"
	"lobby-pilot/util"
	"lobby-pilot/visual"
	"lobby-pilot/winapi"
	"lobby-pilot/winapi/winapitest"
	"lobby-pilot/window"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testMember struct {
	login string
	pid   uint32
	valid atomic.Bool
}

func newTestMember(login string, pid uint32) *testMember {
	m := &testMember{login: login, pid: pid}
	m.valid.Store(true)
	return m
}

func (m *testMember) Login() string     { return m.login }
func (m *testMember) ProcessID() uint32 { return m.pid }
func (m *testMember) Valid() bool       { return m.valid.Load() }

type testAccounts []*testMember

func (a testAccounts) Members() []Member {
	out := make([]Member, 0, len(a))
	for _, m := range a {
		out = append(out, m)
	}
	return out
}

type testClipboard struct {
	mu     sync.Mutex
	text   string
	reads  int
	pastes int
}

func (c *testClipboard) Text() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.text, nil
}

func (c *testClipboard) Paste(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pastes++
	return nil
}

type testSignal struct {
	atomic.Bool
}

func (s *testSignal) Accepted() bool { return s.Load() }
func (s *testSignal) Reset()         { s.Store(false) }
func (s *testSignal) Set()           { s.Store(true) }

type harness struct {
	desk     *winapitest.Desktop
	clock    *util.ManualClock
	clip     *testClipboard
	accepted *testSignal
	members  testAccounts
	handles  map[string]winapi.Handle
	seq      *Sequencer
	mgr      *Manager
}

// newHarness starts n clients named A, B, C... whose windows are spread left
// to right in account-list order.
func newHarness(t *testing.T, n int, cfg Config) *harness {
	t.Helper()

	h := &harness{
		desk:     winapitest.NewDesktop(),
		clock:    util.NewManualClock(time.Unix(0, 0)),
		clip:     &testClipboard{text: "CSGO-abcde-fghij"},
		accepted: &testSignal{},
		handles:  make(map[string]winapi.Handle),
	}

	for i := 0; i < n; i++ {
		login := string(rune('A' + i))
		pid := uint32(100 + i)
		rect := winapi.Rect{Left: 50 + i*500, Top: 40, Width: window.SlotWidth, Height: window.SlotHeight}
		h.handles[login] = h.desk.AddClient(pid, DefaultClientProcess, rect)
		h.members = append(h.members, newTestMember(login, pid))
	}

	locator := window.NewLocator(h.desk)
	driver := input.NewDriver(h.desk, h.desk, h.clock)
	h.seq = NewSequencer(locator, driver, h.clip)
	h.mgr = NewManager(cfg, Deps{
		Accounts:  h.members,
		Processes: h.desk,
		Locator:   locator,
		Arranger:  window.NewArranger(h.desk, locator),
		Driver:    driver,
		Sequencer: h.seq,
		State:     visual.NewSampler(h.desk).Sample,
		Accepted:  h.accepted,
		Clock:     h.clock,
		Rand:      rand.New(rand.NewPCG(7, 11)),
	})
	return h
}

func (h *harness) member(login string) *testMember {
	for _, m := range h.members {
		if m.login == login {
			return m
		}
	}
	panic(fmt.Sprintf("unknown member %q", login))
}

func (h *harness) rect(t *testing.T, login string) winapi.Rect {
	t.Helper()
	w, ok := h.desk.Window(h.handles[login])
	require.True(t, ok, "window of %s is gone", login)
	return w.Rect
}

func (h *harness) startClicks(login string) int {
	count := 0
	for _, p := range h.desk.ClicksOn(h.handles[login]) {
		if p == startButton {
			count++
		}
	}
	return count
}

func teamLogins(t *Team) []string {
	if t == nil {
		return nil
	}
	return t.Logins()
}
