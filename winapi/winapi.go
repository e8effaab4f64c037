package winapi

import (
	"errors"
	"image"
)

// ErrUnsupported is returned by New on operating systems without a Win32 desktop.
var ErrUnsupported = errors.New("win32 desktop is not available on this platform")

type Handle uintptr

// Rect is a located window in screen coordinates.
type Rect struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// At converts a window-relative offset into absolute screen coordinates.
func (r Rect) At(offset image.Point) image.Point {
	return image.Point{X: r.Left + offset.X, Y: r.Top + offset.Y}
}

func (r Rect) Contains(p image.Point) bool {
	return p.X >= r.Left && p.X < r.Left+r.Width && p.Y >= r.Top && p.Y < r.Top+r.Height
}

// Window is one enumerated top-level window.
type Window struct {
	Handle    Handle
	PID       uint32
	Title     string
	Visible   bool
	HasParent bool
	Rect      Rect
}

// Virtual key codes used by the pilot.
const (
	VKControl uint16 = 0x11
	VKEscape  uint16 = 0x1B
	VKShift   uint16 = 0x10
	VKMenu    uint16 = 0x12
	VKQ       uint16 = 0x51
	VKV       uint16 = 0x56
)

type Windowing interface {
	EnumWindows() ([]Window, error)
	IsWindow(h Handle) bool
	WindowRect(h Handle) (Rect, error)
	Restore(h Handle) error
	Move(h Handle, r Rect) error
	SetTitle(h Handle, title string) error
	BringToTop(h Handle) error
	SetForeground(h Handle) error
	ForegroundWindow() Handle
	WindowThreadID(h Handle) uint32
	AttachThreadInput(from, to uint32, attach bool) error
}

type Input interface {
	// PostKey queues a key event on the window's message queue without focusing it.
	PostKey(h Handle, vk uint16, down bool) error
	SetCursorPos(x, y int) error
	// MouseButton synthesizes a left button transition at the cursor position.
	MouseButton(down bool) error
	// KeyChord presses the keys in order and releases them in reverse order.
	KeyChord(vks ...uint16) error
	KeyPressed(vk uint16) bool
}

type Screen interface {
	Capture(x, y, w, h int) (image.Image, error)
}

type Processes interface {
	ProcessAlive(pid uint32) bool
	ProcessesByName(name string) ([]uint32, error)
}

// Platform is everything the pilot needs from the operating system.
type Platform interface {
	Windowing
	Input
	Screen
	Processes
	SetDPIAware()
}
