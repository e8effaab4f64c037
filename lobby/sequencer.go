package lobby

import (
	"context"
	"go.uber.org/zap"
	"image"
	"lobby-pilot/applog"
	"lobby-pilot/fault"
	"lobby-pilot/input"
	"lobby-pilot/util"
	"lobby-pilot/winapi"
	"lobby-pilot/window"
	"time"
)

type stepKind uint8

const (
	stepWait stepKind = iota
	stepMove
	stepClick
	stepPaste
)

// step is a single scripted UI action, addressed relative to the window.
type step struct {
	kind stepKind
	at   image.Point
	wait time.Duration
}

func wait(d time.Duration) step { return step{kind: stepWait, wait: d} }
func move(x, y int) step        { return step{kind: stepMove, at: image.Pt(x, y)} }
func click(x, y int) step       { return step{kind: stepClick, at: image.Pt(x, y)} }
func paste() step               { return step{kind: stepPaste} }

const (
	sweepX     = 235
	sweepFromY = 142
	sweepToY   = 220
	sweepStepY = 5

	inviteSettleDelay = 1500 * time.Millisecond
)

var (
	// Opens the bot's lobby menu and copies its invite reference.
	botCopyInviteScript = []step{
		wait(100 * time.Millisecond),
		move(380, 100),
		wait(500 * time.Millisecond),
		click(375, 8),
		wait(500 * time.Millisecond),
		click(375, 8),
		wait(500 * time.Millisecond),
		click(204, 157),
		wait(500 * time.Millisecond),
		click(237, 157),
	}

	// Accepts the pending invite on the bot side.
	botAcceptScript = []step{
		move(380, 100),
		wait(600 * time.Millisecond),
		click(306, 37),
	}

	// Opens the party menu on the first bot, which drops the whole lobby.
	disbandScript = []step{
		wait(100 * time.Millisecond),
		move(380, 100),
		wait(500 * time.Millisecond),
		click(375, 8),
	}

	leaderInviteScript = buildLeaderInviteScript()
)

// buildLeaderInviteScript pastes the invite reference into the leader's
// search box and sweeps down the result list to hit the invite button
// wherever it is rendered.
func buildLeaderInviteScript() []step {
	script := []step{
		move(380, 100),
		wait(600 * time.Millisecond),
		click(375, 8),
		wait(time.Second),
		paste(),
		wait(time.Second),
		click(195, 140),
		wait(1500 * time.Millisecond),
	}
	for y := sweepFromY; y < sweepToY; y += sweepStepY {
		script = append(script, click(sweepX, y), wait(time.Millisecond))
	}
	return append(script, click(sweepX, 165))
}

// Sequencer drives the collect and disband scripts against client windows.
type Sequencer struct {
	locator *window.Locator
	driver  *input.Driver
	clip    Clipboard
}

func NewSequencer(locator *window.Locator, driver *input.Driver, clip Clipboard) *Sequencer {
	return &Sequencer{
		locator: locator,
		driver:  driver,
		clip:    clip,
	}
}

// Collect has every bot of the team copy its invite reference, the leader
// paste and invite it, and finally every bot accept. A member whose window is
// gone is skipped. Only cancellation aborts.
func (s *Sequencer) Collect(ctx context.Context, team *Team) error {
	if team == nil || team.Leader == nil {
		return nil
	}

	log := applog.FromContext(ctx).With(zap.String("leader", team.Leader.Login()))
	leader, leaderFound := s.locator.LocateTarget(team.Leader)
	if !leaderFound {
		log.Warn("Leader window not found, invites will not be sent")
	}

	for _, bot := range team.Bots {
		if err := util.CheckCancelled(ctx); err != nil {
			return err
		}

		botLog := log.With(zap.String("bot", bot.Login()))
		botWindow, ok := s.locator.LocateTarget(bot)
		if !ok {
			botLog.Warn("Bot window not found, skipping")
			continue
		}

		if err := s.driver.Focus(ctx, botWindow.Handle); err != nil {
			if fault.IsCancelled(err) {
				return err
			}
			botLog.Warn("Could not focus bot window, skipping", zap.Error(err))
			continue
		}

		if err := s.run(ctx, botWindow.Handle, botCopyInviteScript); err != nil {
			if fault.IsCancelled(err) {
				return err
			}
			botLog.Warn("Copying invite reference failed", zap.Error(err))
			continue
		}
		s.logInvite(botLog)

		if !leaderFound {
			continue
		}

		if err := s.driver.Focus(ctx, leader.Handle); err != nil {
			if fault.IsCancelled(err) {
				return err
			}
			botLog.Warn("Could not focus leader window", zap.Error(err))
			continue
		}

		if err := s.run(ctx, leader.Handle, leaderInviteScript); err != nil {
			if fault.IsCancelled(err) {
				return err
			}
			botLog.Warn("Sending invite failed", zap.Error(err))
		}
	}

	if err := s.driver.Sleep(ctx, inviteSettleDelay); err != nil {
		return err
	}

	for _, bot := range team.Bots {
		if err := util.CheckCancelled(ctx); err != nil {
			return err
		}

		botWindow, ok := s.locator.LocateTarget(bot)
		if !ok {
			continue
		}

		if err := s.driver.Focus(ctx, botWindow.Handle); err != nil {
			if fault.IsCancelled(err) {
				return err
			}
			log.Warn("Could not focus bot window to accept", zap.String("bot", bot.Login()), zap.Error(err))
			continue
		}

		if err := s.run(ctx, botWindow.Handle, botAcceptScript); err != nil {
			if fault.IsCancelled(err) {
				return err
			}
			log.Warn("Accepting invite failed", zap.String("bot", bot.Login()), zap.Error(err))
		}
	}

	log.Info("Lobby collected", zap.Strings("members", team.Logins()))
	return nil
}

// Disband leaves the lobby from the team's first bot. Teams without bots
// are left alone.
func (s *Sequencer) Disband(ctx context.Context, team *Team) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}
	if team == nil || len(team.Bots) == 0 {
		return nil
	}

	bot := team.Bots[0]
	log := applog.FromContext(ctx).With(zap.String("bot", bot.Login()))

	botWindow, ok := s.locator.LocateTarget(bot)
	if !ok {
		log.Warn("Bot window not found, lobby not disbanded")
		return nil
	}

	if err := s.driver.Focus(ctx, botWindow.Handle); err != nil {
		if fault.IsCancelled(err) {
			return err
		}
		log.Warn("Could not focus bot window, lobby not disbanded", zap.Error(err))
		return nil
	}

	if err := s.run(ctx, botWindow.Handle, disbandScript); err != nil {
		if fault.IsCancelled(err) {
			return err
		}
		log.Warn("Disband script failed", zap.Error(err))
		return nil
	}

	log.Info("Lobby disbanded")
	return nil
}

func (s *Sequencer) run(ctx context.Context, h winapi.Handle, script []step) error {
	for _, st := range script {
		var err error
		switch st.kind {
		case stepWait:
			err = s.driver.Sleep(ctx, st.wait)
		case stepMove:
			err = s.driver.MoveCursor(ctx, h, st.at)
		case stepClick:
			err = s.driver.Click(ctx, h, st.at)
		case stepPaste:
			err = s.paste(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) paste(ctx context.Context) error {
	if s.clip == nil {
		return fault.Unavailable("paste", 0, nil)
	}
	return s.clip.Paste(ctx)
}

func (s *Sequencer) logInvite(log *applog.Logger) {
	if s.clip == nil {
		return
	}
	text, err := s.clip.Text()
	if err != nil {
		log.Debug("Could not read clipboard", zap.Error(err))
		return
	}
	if text == "" {
		log.Warn("Clipboard is empty after copying invite reference")
		return
	}
	log.Info("Invite reference copied", zap.String("code", util.Truncate(text, 32)))
}
