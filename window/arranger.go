package window

import (
	"context"
	"fmt"
	"go.uber.org/zap"
	"lobby-pilot/applog"
	"lobby-pilot/fault"
	"lobby-pilot/util"
	"lobby-pilot/winapi"
)

// Slot geometry of the arranged grid. Every sampled and clicked coordinate
// assumes windows of exactly this size.
const (
	SlotWidth  = 383
	SlotHeight = 280
)

// TitlePrefix tags arranged windows so they can be told apart on the taskbar.
const TitlePrefix = "[PILOT]"

// ErrNothingPlaced means not a single window could be arranged.
var ErrNothingPlaced = fmt.Errorf("no client window could be arranged: %w", fault.ErrUnavailable)

type Arranger struct {
	win     winapi.Windowing
	locator *Locator
}

func NewArranger(win winapi.Windowing, locator *Locator) *Arranger {
	return &Arranger{win: win, locator: locator}
}

// Slot returns the rectangle of the n-th placed window.
func Slot(n int) winapi.Rect {
	return winapi.Rect{Left: n * SlotWidth, Top: 0, Width: SlotWidth, Height: SlotHeight}
}

func Title(login string) string {
	return fmt.Sprintf("%s %s", TitlePrefix, login)
}

// Arrange lays the targets out left to right in the given order. Targets
// without a locatable window are skipped and do not consume a slot.
func (a *Arranger) Arrange(ctx context.Context, targets []Target) (int, error) {
	placed := 0

	for _, t := range targets {
		if err := util.CheckCancelled(ctx); err != nil {
			return placed, err
		}

		w, ok := a.locator.LocateTarget(t)
		if !ok {
			applog.Debug("Window not found, skipping", zap.String("login", t.Login()))
			continue
		}

		if err := a.place(w.Handle, Slot(placed), t.Login()); err != nil {
			applog.Warn("Could not arrange window",
				zap.String("login", t.Login()),
				zap.Error(err),
			)
			continue
		}
		placed++
	}

	if placed == 0 {
		return 0, ErrNothingPlaced
	}
	return placed, nil
}

func (a *Arranger) place(h winapi.Handle, slot winapi.Rect, login string) error {
	if !a.win.IsWindow(h) {
		return fault.Unavailable("IsWindow", uintptr(h), nil)
	}
	if err := a.win.Restore(h); err != nil {
		return err
	}
	if err := a.win.BringToTop(h); err != nil {
		applog.Debug("Could not bring window to top", zap.String("login", login), zap.Error(err))
	}
	if err := a.win.Move(h, slot); err != nil {
		return err
	}
	// The window already occupies the slot, a stale title is only cosmetic.
	if err := a.win.SetTitle(h, Title(login)); err != nil {
		applog.Debug("Could not set window title", zap.String("login", login), zap.Error(err))
	}
	return nil
}
