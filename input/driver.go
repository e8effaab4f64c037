package input

import (
	"context"
	"go.uber.org/zap"
	"image"
	"lobby-pilot/applog"
	"lobby-pilot/fault"
	"lobby-pilot/util"
	"lobby-pilot/winapi"
	"time"
)

const (
	// clickHoldDelay separates cursor move, button down and button up.
	clickHoldDelay   = 30 * time.Millisecond
	escapeHoldDelay  = 50 * time.Millisecond
	escapeAfterDelay = 100 * time.Millisecond
)

// Driver is the only component that injects input. All calls are expected to
// come from one goroutine: focus is a single OS-wide resource.
type Driver struct {
	win   winapi.Windowing
	in    winapi.Input
	clock util.Clock
}

func NewDriver(win winapi.Windowing, in winapi.Input, clock util.Clock) *Driver {
	return &Driver{win: win, in: in, clock: clock}
}

// Sleep waits on the driver clock, returning fault.ErrCancelled on cancellation.
func (d *Driver) Sleep(ctx context.Context, dur time.Duration) error {
	return d.clock.Sleep(ctx, dur)
}

// Focus restores h and makes it the foreground window. When the foreground
// belongs to another thread, input is attached to that thread for the
// duration of the call and always detached again.
func (d *Driver) Focus(ctx context.Context, h winapi.Handle) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}
	if h == 0 || !d.win.IsWindow(h) {
		return fault.Unavailable("IsWindow", uintptr(h), nil)
	}

	if err := d.win.Restore(h); err != nil {
		applog.Debug("Could not restore window", zap.Uintptr("hwnd", uintptr(h)), zap.Error(err))
	}

	foregroundThread := d.win.WindowThreadID(d.win.ForegroundWindow())
	targetThread := d.win.WindowThreadID(h)
	if foregroundThread != 0 && targetThread != 0 && foregroundThread != targetThread {
		if err := d.win.AttachThreadInput(foregroundThread, targetThread, true); err == nil {
			defer func() {
				_ = d.win.AttachThreadInput(foregroundThread, targetThread, false)
			}()
		}
	}

	// The window may have been closed while the threads were being attached.
	if !d.win.IsWindow(h) {
		return fault.Unavailable("IsWindow", uintptr(h), nil)
	}
	if err := d.win.BringToTop(h); err != nil {
		applog.Debug("Could not bring window to top", zap.Uintptr("hwnd", uintptr(h)), zap.Error(err))
	}
	if !d.win.IsWindow(h) {
		return fault.Unavailable("IsWindow", uintptr(h), nil)
	}
	return d.win.SetForeground(h)
}

// MoveCursor puts the cursor at offset inside the window's current rectangle.
func (d *Driver) MoveCursor(ctx context.Context, h winapi.Handle, offset image.Point) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}
	rect, err := d.win.WindowRect(h)
	if err != nil {
		return err
	}
	p := rect.At(offset)
	return d.in.SetCursorPos(p.X, p.Y)
}

// Click left-clicks at offset inside the window's current rectangle. The
// window must already have focus.
func (d *Driver) Click(ctx context.Context, h winapi.Handle, offset image.Point) error {
	rect, err := d.win.WindowRect(h)
	if err != nil {
		if cancelErr := util.CheckCancelled(ctx); cancelErr != nil {
			return cancelErr
		}
		return err
	}
	return d.ClickAt(ctx, rect, offset)
}

// ClickAt left-clicks at offset inside rect, for callers holding a rectangle
// read earlier in the same step.
func (d *Driver) ClickAt(ctx context.Context, rect winapi.Rect, offset image.Point) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}

	p := rect.At(offset)
	if err := d.in.SetCursorPos(p.X, p.Y); err != nil {
		return err
	}
	if err := d.clock.Sleep(ctx, clickHoldDelay); err != nil {
		return err
	}
	if err := d.in.MouseButton(true); err != nil {
		return err
	}
	if err := d.clock.Sleep(ctx, clickHoldDelay); err != nil {
		// Never leave the button held down.
		_ = d.in.MouseButton(false)
		return err
	}
	return d.in.MouseButton(false)
}

// ClickFocused focuses h before clicking at offset inside rect. A refused
// focus is logged and the click still goes out, matching how the start
// button is driven.
func (d *Driver) ClickFocused(ctx context.Context, h winapi.Handle, rect winapi.Rect, offset image.Point) error {
	if err := d.Focus(ctx, h); err != nil {
		if fault.IsCancelled(err) {
			return err
		}
		applog.Debug("Could not focus window before click", zap.Uintptr("hwnd", uintptr(h)), zap.Error(err))
	}
	return d.ClickAt(ctx, rect, offset)
}

// PressEscape posts two Escape down/up pairs to h without taking focus.
func (d *Driver) PressEscape(ctx context.Context, h winapi.Handle) error {
	for i := 0; i < 2; i++ {
		if err := util.CheckCancelled(ctx); err != nil {
			return err
		}
		if err := d.in.PostKey(h, winapi.VKEscape, true); err != nil {
			return err
		}
		if err := d.clock.Sleep(ctx, escapeHoldDelay); err != nil {
			return err
		}
		if err := d.in.PostKey(h, winapi.VKEscape, false); err != nil {
			return err
		}
		if err := d.clock.Sleep(ctx, escapeAfterDelay); err != nil {
			return err
		}
	}
	return nil
}

// Paste sends Ctrl+V to the focused window.
func (d *Driver) Paste(ctx context.Context) error {
	if err := util.CheckCancelled(ctx); err != nil {
		return err
	}
	return d.in.KeyChord(winapi.VKControl, winapi.VKV)
}
