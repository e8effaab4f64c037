package lobby

import (
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"image"
	"lobby-pilot/applog"
	"lobby-pilot/fault"
	"lobby-pilot/input"
	"lobby-pilot/util"
	"lobby-pilot/visual"
	"lobby-pilot/winapi"
	"lobby-pilot/window"
	"math/rand/v2"
	"slices"
	"time"
)

const (
	DefaultClientProcess = "cs2.exe"
	DefaultMaxCycles     = 3
	DefaultSearchTimeout = 600 * time.Second
	DefaultPollInterval  = time.Second

	arrangeSettleDelay = 2 * time.Second
	searchFocusDelay   = 300 * time.Millisecond
	searchClickDelay   = 250 * time.Millisecond
	searchSettleDelay  = 600 * time.Millisecond
	readyRecheckDelay  = 150 * time.Millisecond
	recoveryClickDelay = 100 * time.Millisecond
	liftDelay          = 50 * time.Millisecond
)

var (
	// Relative position of the leader's start button.
	startButton = image.Point{X: 289, Y: 271}
	// Clicks that open the search panel in a leader window.
	openSearchSequence = []image.Point{{X: 206, Y: 8}, {X: 154, Y: 23}, {X: 142, Y: 33}}
)

type Config struct {
	ClientProcess string
	MaxCycles     int
	SearchTimeout time.Duration
	PollInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		ClientProcess: DefaultClientProcess,
		MaxCycles:     DefaultMaxCycles,
		SearchTimeout: DefaultSearchTimeout,
		PollInterval:  DefaultPollInterval,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ClientProcess == "" {
		c.ClientProcess = def.ClientProcess
	}
	if c.MaxCycles <= 0 {
		c.MaxCycles = def.MaxCycles
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = def.SearchTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	return c
}

// Deps are the collaborators a Manager drives.
type Deps struct {
	Accounts  AccountSource
	Processes winapi.Processes
	Locator   *window.Locator
	Arranger  *window.Arranger
	Driver    *input.Driver
	Sequencer *Sequencer
	State     visual.StateFunc
	Accepted  AcceptSignal
	Clock     util.Clock
	Rand      *rand.Rand
}

// Manager owns the two teams and runs the collect, search and recovery cycle.
// It is not safe for concurrent use; one operation runs at a time.
type Manager struct {
	cfg       Config
	accounts  AccountSource
	procs     winapi.Processes
	locator   *window.Locator
	arranger  *window.Arranger
	driver    *input.Driver
	seq       *Sequencer
	state     visual.StateFunc
	accepted  AcceptSignal
	clock     util.Clock
	rng       *rand.Rand
	teamA     *Team
	teamB     *Team
	lastOrder []string
}

func NewManager(cfg Config, deps Deps) *Manager {
	clock := deps.Clock
	if clock == nil {
		clock = util.SystemClock{}
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Manager{
		cfg:      cfg.withDefaults(),
		accounts: deps.Accounts,
		procs:    deps.Processes,
		locator:  deps.Locator,
		arranger: deps.Arranger,
		driver:   deps.Driver,
		seq:      deps.Sequencer,
		state:    deps.State,
		accepted: deps.Accepted,
		clock:    clock,
		rng:      rng,
	}
}

// Teams returns the currently held teams, nil when none are assembled.
func (m *Manager) Teams() (*Team, *Team) {
	return m.teamA, m.teamB
}

// IsValid reports whether both teams are held and every member is valid.
func (m *Manager) IsValid() bool {
	if m.teamA == nil || m.teamB == nil {
		return false
	}
	for _, member := range slices.Concat(m.teamA.Members(), m.teamB.Members()) {
		if member == nil || !member.Valid() {
			return false
		}
	}
	return true
}

func (m *Manager) rectOf(member Member) (winapi.Rect, bool) {
	w, ok := m.locator.LocateTarget(member)
	if !ok {
		return winapi.Rect{}, false
	}
	return w.Rect, true
}

// assemble rebuilds both teams from the current on-screen layout.
func (m *Manager) assemble(ctx context.Context) error {
	ordered := CanonicalOrder(m.accounts.Members(), m.rectOf)
	a, b, err := Partition(ordered)
	if err != nil {
		applog.FromContext(ctx).Error("Need at least 4 valid client windows to assemble lobbies",
			zap.Int("found", len(ordered)),
		)
		return err
	}

	m.teamA, m.teamB = a, b
	m.lastOrder = logins(ordered)
	applog.FromContext(ctx).Info("Lobbies assembled",
		zap.String("teamA", a.String()),
		zap.String("teamB", b.String()),
	)
	return nil
}

// CollectLobby assembles teams from the window layout, arranges the windows
// and runs the invite sequence for team A and then team B.
func (m *Manager) CollectLobby(ctx context.Context) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}
	if err := m.assemble(ctx); err != nil {
		return err
	}
	// The invite scripts click fixed offsets that only hold for arranged windows.
	if err := m.MoveWindows(ctx, nil); err != nil {
		applog.FromContext(ctx).Error("Could not arrange windows before collecting", zap.Error(err))
		return err
	}
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}

	if err := m.seq.Collect(ctx, m.teamA); err != nil {
		return err
	}
	return m.seq.Collect(ctx, m.teamB)
}

// DisbandLobbies leaves both lobbies through their first bot and forgets the
// teams. Teams are assembled from the window layout when none are held.
func (m *Manager) DisbandLobbies(ctx context.Context) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}
	if m.teamA == nil || m.teamB == nil || len(m.teamA.Bots) == 0 || len(m.teamB.Bots) == 0 {
		if err := m.assemble(ctx); err != nil {
			return err
		}
	}

	if err := m.seq.Disband(ctx, m.teamA); err != nil {
		return err
	}
	m.teamA = nil

	if err := m.seq.Disband(ctx, m.teamB); err != nil {
		return err
	}
	m.teamB = nil

	applog.FromContext(ctx).Info("Lobbies disbanded")
	return nil
}

// MoveWindows tiles the member windows left to right in the given login
// order. An empty order falls back to the last assembled or shuffled order
// and then to account-list order.
func (m *Manager) MoveWindows(ctx context.Context, order []string) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}

	members := m.accounts.Members()
	if m.teamA != nil && m.teamB != nil {
		members = slices.Concat(m.teamA.Members(), m.teamB.Members())
	}

	byLogin := make(map[string]Member, len(members))
	for _, member := range members {
		byLogin[member.Login()] = member
	}

	if len(order) == 0 {
		order = m.lastOrder
	}
	if len(order) == 0 {
		order = logins(m.accounts.Members())
	}

	targets := make([]window.Target, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, login := range order {
		member, ok := byLogin[login]
		if !ok {
			continue
		}
		if _, dup := seen[login]; dup {
			continue
		}
		seen[login] = struct{}{}
		targets = append(targets, member)
	}
	if len(targets) == 0 {
		for _, member := range members {
			targets = append(targets, member)
		}
	}

	placed, err := m.arranger.Arrange(ctx, targets)
	if err != nil {
		return err
	}
	applog.FromContext(ctx).Debug("Windows arranged", zap.Int("placed", placed))
	return nil
}

// Shuffle randomizes the valid, locatable members into two new teams and
// arranges their windows in the shuffled order.
func (m *Manager) Shuffle(ctx context.Context) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}

	var candidates []Member
	for _, member := range m.accounts.Members() {
		if member == nil || !member.Valid() {
			continue
		}
		if _, ok := m.locator.LocateTarget(member); !ok {
			continue
		}
		candidates = append(candidates, member)
	}

	a, b, shuffled, err := ShufflePartition(candidates, m.rng)
	if err != nil {
		applog.FromContext(ctx).Error("Not enough active accounts to shuffle", zap.Int("found", len(candidates)))
		return err
	}

	m.teamA, m.teamB = a, b
	m.lastOrder = logins(shuffled)
	if err := m.MoveWindows(ctx, m.lastOrder); err != nil {
		return err
	}

	applog.FromContext(ctx).Info("Teams shuffled",
		zap.String("teamA", a.String()),
		zap.String("teamB", b.String()),
	)
	return nil
}

func (m *Manager) clientWindows(ctx context.Context) []winapi.Window {
	pids, err := m.procs.ProcessesByName(m.cfg.ClientProcess)
	if err != nil {
		applog.FromContext(ctx).Warn("Could not list client processes",
			zap.String("process", m.cfg.ClientProcess),
			zap.Error(err),
		)
		return nil
	}
	return m.locator.ByProcess(pids)
}

// PressEscapeAll posts Escape to every visible window of every client
// process without focusing it. Returns how many windows received it.
func (m *Manager) PressEscapeAll(ctx context.Context) (int, error) {
	count := 0
	for _, w := range m.clientWindows(ctx) {
		if err := m.driver.PressEscape(ctx, w.Handle); err != nil {
			if fault.IsCancelled(err) {
				return count, err
			}
			applog.FromContext(ctx).Debug("Escape not delivered", zap.Uintptr("hwnd", uintptr(w.Handle)), zap.Error(err))
			continue
		}
		count++
	}
	applog.FromContext(ctx).Debug("Escape sent to client windows", zap.Int("count", count))
	return count, nil
}

// LiftAll brings one titled window per client process to the foreground.
func (m *Manager) LiftAll(ctx context.Context) (int, error) {
	count := 0
	lifted := make(map[uint32]struct{})
	for _, w := range m.clientWindows(ctx) {
		if _, done := lifted[w.PID]; done || w.Title == "" {
			continue
		}
		if err := m.driver.Focus(ctx, w.Handle); err != nil {
			if fault.IsCancelled(err) {
				return count, err
			}
			continue
		}
		lifted[w.PID] = struct{}{}
		count++
		if err := m.driver.Sleep(ctx, liftDelay); err != nil {
			return count, err
		}
	}
	return count, nil
}

type leaderView struct {
	handle winapi.Handle
	rect   winapi.Rect
}

func (m *Manager) leader(team *Team) (leaderView, bool) {
	if team == nil || team.Leader == nil {
		return leaderView{}, false
	}
	w, ok := m.locator.LocateTarget(team.Leader)
	if !ok {
		return leaderView{}, false
	}
	return leaderView{handle: w.Handle, rect: w.Rect}, true
}

// clickStart clicks a leader's start button. Only cancellation is returned.
func (m *Manager) clickStart(ctx context.Context, lv leaderView) error {
	err := m.driver.ClickFocused(ctx, lv.handle, lv.rect, startButton)
	if err == nil || fault.IsCancelled(err) {
		return err
	}
	applog.FromContext(ctx).Debug("Start button click failed", zap.Uintptr("hwnd", uintptr(lv.handle)), zap.Error(err))
	return nil
}

type searchOutcome uint8

const (
	outcomeTimedOut searchOutcome = iota
	outcomeAccepted
	outcomeWindowsGone
)

func (o searchOutcome) String() string {
	switch o {
	case outcomeAccepted:
		return "accepted"
	case outcomeWindowsGone:
		return "windowsGone"
	default:
		return "timedOut"
	}
}

// MakeLobbiesAndSearch runs up to MaxCycles cycles of collect, open search
// and monitor. A cycle that times out without an accepted match recovers by
// disbanding and reshuffling before the next cycle.
func (m *Manager) MakeLobbiesAndSearch(ctx context.Context) error {
	m.accepted.Reset()

	for cycle := 1; cycle <= m.cfg.MaxCycles; cycle++ {
		cycleCtx := applog.AddContextFields(ctx, zap.Int("cycle", cycle))
		log := applog.FromContext(cycleCtx)

		if err := util.CheckCancelled(cycleCtx); err != nil {
			return err
		}
		if m.accepted.Accepted() {
			log.Info("Match already accepted, stopping")
			return nil
		}

		log.Info("Starting lobby cycle", zap.Int("maxCycles", m.cfg.MaxCycles))
		outcome, err := m.runCycle(cycleCtx)
		if err != nil {
			return err
		}
		if outcome != outcomeTimedOut {
			log.Info("Search finished", zap.Stringer("outcome", outcome))
			return nil
		}
		if m.accepted.Accepted() {
			log.Info("Match accepted at timeout, stopping")
			return nil
		}

		if err := m.recoverAfterTimeout(cycleCtx); err != nil {
			return err
		}
	}

	applog.FromContext(ctx).Error("Match was not found after recovery cycles", zap.Int("cycles", m.cfg.MaxCycles))
	return fmt.Errorf("%w (%d cycles)", fault.ErrRecoveryExhausted, m.cfg.MaxCycles)
}

func (m *Manager) runCycle(ctx context.Context) (searchOutcome, error) {
	if _, err := m.PressEscapeAll(ctx); err != nil {
		return outcomeTimedOut, err
	}
	if err := m.CollectLobby(ctx); err != nil {
		return outcomeTimedOut, err
	}
	if m.accepted.Accepted() {
		return outcomeAccepted, nil
	}

	if err := m.MoveWindows(ctx, nil); err != nil {
		if fault.IsCancelled(err) {
			return outcomeTimedOut, err
		}
		applog.FromContext(ctx).Warn("Could not arrange windows before search", zap.Error(err))
	}
	if err := m.driver.Sleep(ctx, arrangeSettleDelay); err != nil {
		return outcomeTimedOut, err
	}

	accepted, err := m.openSearch(ctx)
	if err != nil {
		return outcomeTimedOut, err
	}
	if accepted {
		return outcomeAccepted, nil
	}
	if err := m.driver.Sleep(ctx, searchSettleDelay); err != nil {
		return outcomeTimedOut, err
	}

	if err := m.initialStart(ctx); err != nil {
		return outcomeTimedOut, err
	}
	return m.monitor(ctx)
}

// openSearch opens the search panel in both leader windows. It reports true
// when a match got accepted in the meantime.
func (m *Manager) openSearch(ctx context.Context) (bool, error) {
	for _, team := range []*Team{m.teamA, m.teamB} {
		if err := util.CheckCancelled(ctx); err != nil {
			return false, err
		}
		if m.accepted.Accepted() {
			return true, nil
		}

		lv, ok := m.leader(team)
		if !ok {
			continue
		}
		if err := m.driver.Focus(ctx, lv.handle); err != nil {
			if fault.IsCancelled(err) {
				return false, err
			}
			applog.FromContext(ctx).Debug("Could not focus leader before opening search", zap.Error(err))
		}
		if err := m.driver.Sleep(ctx, searchFocusDelay); err != nil {
			return false, err
		}

		for _, p := range openSearchSequence {
			err := m.driver.ClickFocused(ctx, lv.handle, lv.rect, p)
			if err != nil && fault.IsCancelled(err) {
				return false, err
			}
			if err := m.driver.Sleep(ctx, searchClickDelay); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// initialStart presses start on every leader whose button reads Ready.
func (m *Manager) initialStart(ctx context.Context) error {
	for _, team := range []*Team{m.teamA, m.teamB} {
		lv, ok := m.leader(team)
		if !ok {
			continue
		}
		if m.state(lv.rect, startButton) != visual.Ready {
			continue
		}
		if err := m.clickStart(ctx, lv); err != nil {
			return err
		}
	}
	return nil
}

// monitor polls both leaders' start buttons until a match is accepted, both
// leader windows are gone, or the search timeout elapses.
func (m *Manager) monitor(ctx context.Context) (searchOutcome, error) {
	start := m.clock.Now()
	for m.clock.Now().Sub(start) < m.cfg.SearchTimeout {
		if err := util.CheckCancelled(ctx); err != nil {
			return outcomeTimedOut, err
		}
		if m.accepted.Accepted() {
			return outcomeAccepted, nil
		}

		a, okA := m.leader(m.teamA)
		b, okB := m.leader(m.teamB)
		if !okA && !okB {
			return outcomeWindowsGone, nil
		}
		if okA && okB {
			if err := m.tick(ctx, a, b); err != nil {
				return outcomeTimedOut, err
			}
		}

		if err := m.driver.Sleep(ctx, m.cfg.PollInterval); err != nil {
			return outcomeTimedOut, err
		}
	}
	return outcomeTimedOut, nil
}

func (m *Manager) tick(ctx context.Context, a, b leaderView) error {
	d := Decide(m.state(a.rect, startButton), m.state(b.rect, startButton))
	if d.ClickA {
		if err := m.clickStart(ctx, a); err != nil {
			return err
		}
	}
	if d.ClickB {
		if err := m.clickStart(ctx, b); err != nil {
			return err
		}
	}
	if !d.Recheck {
		return nil
	}

	if err := m.driver.Sleep(ctx, readyRecheckDelay); err != nil {
		return err
	}
	a, okA := m.leader(m.teamA)
	b, okB := m.leader(m.teamB)
	if !okA || !okB {
		return nil
	}
	if m.state(a.rect, startButton) != visual.Ready || m.state(b.rect, startButton) != visual.Ready {
		return nil
	}
	if err := m.clickStart(ctx, a); err != nil {
		return err
	}
	return m.clickStart(ctx, b)
}

// recoverAfterTimeout cancels any running search, disbands both lobbies and
// reshuffles the teams. Disband failures are tolerated, shuffle failures are not.
func (m *Manager) recoverAfterTimeout(ctx context.Context) error {
	log := applog.FromContext(ctx)
	log.Warn("No match accepted before timeout, recovering", zap.Duration("timeout", m.cfg.SearchTimeout))

	if err := m.stopSearching(ctx); err != nil {
		return err
	}
	if _, err := m.PressEscapeAll(ctx); err != nil {
		return err
	}
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}

	if err := m.DisbandLobbies(ctx); err != nil {
		if fault.IsCancelled(err) {
			return err
		}
		log.Warn("Disband during recovery failed", zap.Error(err))
	}
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}

	if err := m.Shuffle(ctx); err != nil {
		if !fault.IsCancelled(err) {
			log.Error("Shuffle during recovery failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// stopSearching clicks the start button of every member whose button reads
// NotReady, which cancels a search in progress.
func (m *Manager) stopSearching(ctx context.Context) error {
	members := m.accounts.Members()
	if m.teamA != nil && m.teamB != nil {
		members = slices.Concat(m.teamA.Members(), m.teamB.Members())
	}

	for _, member := range members {
		if err := util.CheckCancelled(ctx); err != nil {
			return err
		}
		if member == nil || !member.Valid() {
			continue
		}
		w, ok := m.locator.LocateTarget(member)
		if !ok {
			continue
		}
		if m.state(w.Rect, startButton) != visual.NotReady {
			continue
		}
		if err := m.clickStart(ctx, leaderView{handle: w.Handle, rect: w.Rect}); err != nil {
			return err
		}
		if err := m.driver.Sleep(ctx, recoveryClickDelay); err != nil {
			return err
		}
	}
	return nil
}

// IsRecoveryExhausted reports whether err is the terminal search failure.
func IsRecoveryExhausted(err error) bool {
	return errors.Is(err, fault.ErrRecoveryExhausted)
}
