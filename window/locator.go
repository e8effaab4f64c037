package window

import (
	"go.uber.org/zap"
	"lobby-pilot/applog"
	"lobby-pilot/winapi"
)

// Target is anything whose client window can be located and labelled.
type Target interface {
	Login() string
	ProcessID() uint32
}

type Locator struct {
	win winapi.Windowing
}

func NewLocator(win winapi.Windowing) *Locator {
	return &Locator{win: win}
}

// Locate returns the best top-level window of the process: visible, parentless,
// titled, leftmost, then topmost. A failed enumeration counts as not found.
func (l *Locator) Locate(pid uint32) (winapi.Window, bool) {
	if pid == 0 {
		return winapi.Window{}, false
	}

	windows, err := l.win.EnumWindows()
	if err != nil {
		applog.Debug("Could not enumerate windows", zap.Uint32("pid", pid), zap.Error(err))
		return winapi.Window{}, false
	}

	return pickBest(windows, pid)
}

// LocateTarget is Locate for a Target's process.
func (l *Locator) LocateTarget(t Target) (winapi.Window, bool) {
	return l.Locate(t.ProcessID())
}

// ByProcess lists every visible window owned by any of pids, each handle once,
// in enumeration order. Titles and parents are not filtered.
func (l *Locator) ByProcess(pids []uint32) []winapi.Window {
	if len(pids) == 0 {
		return nil
	}

	windows, err := l.win.EnumWindows()
	if err != nil {
		applog.Debug("Could not enumerate windows", zap.Error(err))
		return nil
	}

	wanted := make(map[uint32]struct{}, len(pids))
	for _, pid := range pids {
		wanted[pid] = struct{}{}
	}

	seen := make(map[winapi.Handle]struct{})
	var result []winapi.Window
	for _, w := range windows {
		if _, ok := wanted[w.PID]; !ok || !w.Visible {
			continue
		}
		if _, dup := seen[w.Handle]; dup {
			continue
		}
		seen[w.Handle] = struct{}{}
		result = append(result, w)
	}
	return result
}

func pickBest(windows []winapi.Window, pid uint32) (winapi.Window, bool) {
	var best winapi.Window
	found := false

	for _, w := range windows {
		if w.PID != pid || !w.Visible || w.HasParent || w.Title == "" {
			continue
		}
		if !found || isLeftOrAbove(w.Rect, best.Rect) {
			best = w
			found = true
		}
	}

	return best, found
}

func isLeftOrAbove(a, b winapi.Rect) bool {
	return a.Left < b.Left || (a.Left == b.Left && a.Top < b.Top)
}
