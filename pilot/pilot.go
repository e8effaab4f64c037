package pilot

import (
	"context"
	"fmt"
	"go.uber.org/zap"
	"lobby-pilot/acceptance"
	"lobby-pilot/accounts"
	"lobby-pilot/applog"
	"lobby-pilot/clipboard"
	"lobby-pilot/input"
	"lobby-pilot/launcher"
	"lobby-pilot/lobby"
	"lobby-pilot/logship"
	"lobby-pilot/util"
	"lobby-pilot/visual"
	"lobby-pilot/winapi"
	"lobby-pilot/window"
	"math/rand/v2"
)

type Action string

const (
	ActionSearch  Action = "search"
	ActionCollect Action = "collect"
	ActionDisband Action = "disband"
	ActionShuffle Action = "shuffle"
	ActionArrange Action = "arrange"
	ActionEscape  Action = "escape"
	ActionLift    Action = "lift"
)

// Actions lists every action in the order the CLI shows them.
var Actions = []Action{
	ActionSearch,
	ActionCollect,
	ActionDisband,
	ActionShuffle,
	ActionArrange,
	ActionEscape,
	ActionLift,
}

type Pilot struct {
	ctx         context.Context
	cancel      context.CancelFunc
	info        *launcher.Info
	runID       string
	platform    winapi.Platform
	hotkeyClock util.Clock
	accepted    *acceptance.Flag
	accounts    *accounts.Source
	manager     *lobby.Manager
	logShipper  *logship.Client
}

// New wires the whole pilot for one run. cancel is invoked when the cancel
// hotkey is pressed.
func New(ctx context.Context, cancel context.CancelFunc, info *launcher.Info, runID string, platform winapi.Platform) (*Pilot, error) {
	return newPilot(ctx, cancel, info, runID, platform, util.SystemClock{})
}

func newPilot(
	ctx context.Context,
	cancel context.CancelFunc,
	info *launcher.Info,
	runID string,
	platform winapi.Platform,
	clock util.Clock,
) (*Pilot, error) {
	source, err := accounts.Load(info.AccountsPath, platform)
	if err != nil {
		return nil, err
	}

	locator := window.NewLocator(platform)
	driver := input.NewDriver(platform, platform, clock)
	accepted := acceptance.NewFlag()

	manager := lobby.NewManager(
		lobby.Config{
			ClientProcess: info.ClientProcess,
			MaxCycles:     info.MaxCycles,
			SearchTimeout: info.SearchTimeout,
			PollInterval:  info.PollInterval,
		},
		lobby.Deps{
			Accounts:  source,
			Processes: platform,
			Locator:   locator,
			Arranger:  window.NewArranger(platform, locator),
			Driver:    driver,
			Sequencer: lobby.NewSequencer(locator, driver, clipboard.New(driver)),
			State:     visual.NewSampler(platform).Sample,
			Accepted:  accepted,
			Clock:     clock,
			Rand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		},
	)

	p := &Pilot{
		ctx:         ctx,
		cancel:      cancel,
		info:        info,
		runID:       runID,
		platform:    platform,
		hotkeyClock: util.SystemClock{},
		accepted:    accepted,
		accounts:    source,
		manager:     manager,
	}

	if info.ConsentLogSharing && info.RemoteLogURL != "" {
		p.logShipper = logship.NewClient(info.RemoteLogURL, runID)
	}

	return p, nil
}

// WriteLogEntryToRemote forwards shared logs to the collector.
func (p *Pilot) WriteLogEntryToRemote(entries []*applog.LogEntry) error {
	if p.logShipper == nil {
		return nil
	}
	return p.logShipper.WriteLogEntryToRemote(entries)
}

func (p *Pilot) Manager() *lobby.Manager {
	return p.manager
}

// Run performs one action to completion, cancellation or failure.
func (p *Pilot) Run(action Action) error {
	runCtx, stop := context.WithCancel(p.ctx)
	defer stop()
	runCtx = applog.AddContextFields(runCtx, zap.String("action", string(action)))
	log := applog.FromContext(runCtx)

	p.platform.SetDPIAware()
	p.startHotkeyWatcher(runCtx)

	log.Info("Running action", zap.Int("accounts", p.accounts.Len()))

	switch action {
	case ActionSearch:
		p.startGameStateListener(runCtx)
		return p.manager.MakeLobbiesAndSearch(runCtx)
	case ActionCollect:
		return p.manager.CollectLobby(runCtx)
	case ActionDisband:
		return p.manager.DisbandLobbies(runCtx)
	case ActionShuffle:
		return p.manager.Shuffle(runCtx)
	case ActionArrange:
		return p.manager.MoveWindows(runCtx, nil)
	case ActionEscape:
		count, err := p.manager.PressEscapeAll(runCtx)
		log.Info("Escape sent", zap.Int("windows", count))
		return err
	case ActionLift:
		count, err := p.manager.LiftAll(runCtx)
		log.Info("Windows lifted", zap.Int("windows", count))
		return err
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (p *Pilot) startHotkeyWatcher(ctx context.Context) {
	hotkey, err := launcher.ParseHotkey(p.info.CancelHotkey)
	if err != nil {
		applog.Warn("Cancel hotkey disabled", zap.String("hotkey", p.info.CancelHotkey), zap.Error(err))
		return
	}
	go watchHotkey(ctx, p.platform, hotkey, p.hotkeyClock, p.cancel)
}

func (p *Pilot) startGameStateListener(ctx context.Context) {
	if p.info.GameStateAddr == "" {
		applog.Info("Game state listener disabled, match acceptance will not be detected")
		return
	}

	handler := acceptance.NewGameStateHandler(p.accepted)
	go func() {
		if err := acceptance.Serve(ctx, p.info.GameStateAddr, handler); err != nil {
			applog.Warn("Game state listener stopped", zap.String("addr", p.info.GameStateAddr), zap.Error(err))
		}
	}()
}

func (p *Pilot) Close() error {
	if p.logShipper != nil {
		return p.logShipper.Close()
	}
	return nil
}
