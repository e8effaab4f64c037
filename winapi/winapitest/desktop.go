// Package winapitest provides an in-memory desktop implementing winapi.Platform.
// It records every synthesized action so tests can assert on exact sequences.
package winapitest

import (
	"errors"
	"image"
	"image/color"
	"lobby-pilot/fault"
	"lobby-pilot/winapi"
	"slices"
	"strings"
	"sync"
)

type EventKind string

const (
	EventFocus      EventKind = "focus"
	EventClick      EventKind = "click"
	EventCursor     EventKind = "cursor"
	EventMove       EventKind = "move"
	EventRestore    EventKind = "restore"
	EventBringToTop EventKind = "bringToTop"
	EventTitle      EventKind = "title"
	EventKey        EventKind = "key"
	EventChord      EventKind = "chord"
	EventAttach     EventKind = "attach"
	EventDetach     EventKind = "detach"
)

type Event struct {
	Kind   EventKind
	Handle winapi.Handle
	// Point is absolute for cursor moves and window-relative for clicks.
	Point image.Point
	Rect  winapi.Rect
	Text  string
	Keys  []uint16
	Down  bool
}

var (
	Red   = color.RGBA{R: 200, G: 50, B: 50, A: 0xFF}
	Green = color.RGBA{R: 50, G: 200, B: 50, A: 0xFF}
	Grey  = color.RGBA{R: 100, G: 100, B: 100, A: 0xFF}
)

type Window struct {
	winapi.Window
	ThreadID       uint32
	Minimized      bool
	FailForeground bool
	FailMove       bool
	// Colors are consumed one per capture; the last color sticks.
	Colors []color.RGBA
}

type Desktop struct {
	mu         sync.Mutex
	windows    []*Window
	nextHandle winapi.Handle
	foreground winapi.Handle
	cursor     image.Point
	buttonDown bool
	events     []Event
	alive      map[uint32]bool
	names      map[uint32]string
	pressed    map[uint16]bool
	dpiAware   bool

	// OnClick runs after a click is recorded, outside the desktop lock.
	OnClick func(h winapi.Handle, rel image.Point)
	// EnumErr makes EnumWindows fail.
	EnumErr error
}

func NewDesktop() *Desktop {
	return &Desktop{
		nextHandle: 0x100,
		alive:      make(map[uint32]bool),
		names:      make(map[uint32]string),
		pressed:    make(map[uint16]bool),
	}
}

// AddWindow registers w, assigning a handle and thread id when missing.
func (d *Desktop) AddWindow(w Window) winapi.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w.Handle == 0 {
		d.nextHandle += 0x10
		w.Handle = d.nextHandle
	}
	if w.ThreadID == 0 {
		w.ThreadID = uint32(w.Handle) + 1
	}
	win := w
	d.windows = append(d.windows, &win)
	return win.Handle
}

// AddClient starts a fake client process owning one visible titled window at rect.
func (d *Desktop) AddClient(pid uint32, processName string, rect winapi.Rect) winapi.Handle {
	d.SetProcess(pid, processName, true)
	return d.AddWindow(Window{
		Window: winapi.Window{
			PID:     pid,
			Title:   "Counter-Strike 2",
			Visible: true,
			Rect:    rect,
		},
	})
}

func (d *Desktop) SetProcess(pid uint32, name string, alive bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[pid] = name
	d.alive[pid] = alive
}

func (d *Desktop) RemoveWindow(h winapi.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, w := range d.windows {
		if w.Handle == h {
			d.windows = append(d.windows[:i], d.windows[i+1:]...)
			return
		}
	}
}

// Update applies fn to the window h under the desktop lock.
func (d *Desktop) Update(h winapi.Handle, fn func(w *Window)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w := d.find(h); w != nil {
		fn(w)
	}
}

func (d *Desktop) SetColors(h winapi.Handle, colors ...color.RGBA) {
	d.Update(h, func(w *Window) {
		w.Colors = append([]color.RGBA(nil), colors...)
	})
}

func (d *Desktop) Window(h winapi.Handle) (Window, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w := d.find(h); w != nil {
		return *w, true
	}
	return Window{}, false
}

func (d *Desktop) SetKeyPressed(vk uint16, pressed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pressed[vk] = pressed
}

func (d *Desktop) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

func (d *Desktop) EventsOf(kind EventKind) []Event {
	var out []Event
	for _, e := range d.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ClicksOn returns the window-relative points clicked while h had focus.
func (d *Desktop) ClicksOn(h winapi.Handle) []image.Point {
	var out []image.Point
	for _, e := range d.EventsOf(EventClick) {
		if e.Handle == h {
			out = append(out, e.Point)
		}
	}
	return out
}

func (d *Desktop) ResetEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

func (d *Desktop) DPIAware() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dpiAware
}

func (d *Desktop) find(h winapi.Handle) *Window {
	for _, w := range d.windows {
		if w.Handle == h {
			return w
		}
	}
	return nil
}

func (d *Desktop) record(e Event) {
	d.events = append(d.events, e)
}

func (d *Desktop) SetDPIAware() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dpiAware = true
}

func (d *Desktop) EnumWindows() ([]winapi.Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.EnumErr != nil {
		return nil, fault.Unavailable("EnumWindows", 0, d.EnumErr)
	}
	out := make([]winapi.Window, 0, len(d.windows))
	for _, w := range d.windows {
		out = append(out, w.Window)
	}
	return out, nil
}

func (d *Desktop) IsWindow(h winapi.Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.find(h) != nil
}

func (d *Desktop) WindowRect(h winapi.Handle) (winapi.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(h)
	if w == nil {
		return winapi.Rect{}, fault.Unavailable("GetWindowRect", uintptr(h), nil)
	}
	return w.Rect, nil
}

func (d *Desktop) Restore(h winapi.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(h)
	if w == nil {
		return fault.Unavailable("ShowWindow", uintptr(h), nil)
	}
	w.Minimized = false
	d.record(Event{Kind: EventRestore, Handle: h})
	return nil
}

func (d *Desktop) Move(h winapi.Handle, r winapi.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(h)
	if w == nil || w.FailMove {
		return fault.Unavailable("MoveWindow", uintptr(h), nil)
	}
	w.Rect = r
	d.record(Event{Kind: EventMove, Handle: h, Rect: r})
	return nil
}

func (d *Desktop) SetTitle(h winapi.Handle, title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(h)
	if w == nil {
		return fault.Unavailable("SetWindowText", uintptr(h), nil)
	}
	w.Title = title
	d.record(Event{Kind: EventTitle, Handle: h, Text: title})
	return nil
}

func (d *Desktop) BringToTop(h winapi.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.find(h) == nil {
		return fault.Unavailable("BringWindowToTop", uintptr(h), nil)
	}
	d.record(Event{Kind: EventBringToTop, Handle: h})
	return nil
}

func (d *Desktop) SetForeground(h winapi.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.find(h)
	if w == nil || w.FailForeground {
		return fault.Unavailable("SetForegroundWindow", uintptr(h), errors.New("foreground lock"))
	}
	d.foreground = h
	d.record(Event{Kind: EventFocus, Handle: h})
	return nil
}

func (d *Desktop) ForegroundWindow() winapi.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.foreground
}

func (d *Desktop) WindowThreadID(h winapi.Handle) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w := d.find(h); w != nil {
		return w.ThreadID
	}
	return 0
}

func (d *Desktop) AttachThreadInput(from, to uint32, attach bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind := EventDetach
	if attach {
		kind = EventAttach
	}
	d.record(Event{Kind: kind, Point: image.Point{X: int(from), Y: int(to)}})
	return nil
}

func (d *Desktop) PostKey(h winapi.Handle, vk uint16, down bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.find(h) == nil {
		return fault.Unavailable("PostMessage", uintptr(h), nil)
	}
	d.record(Event{Kind: EventKey, Handle: h, Keys: []uint16{vk}, Down: down})
	return nil
}

func (d *Desktop) SetCursorPos(x, y int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = image.Point{X: x, Y: y}
	d.record(Event{Kind: EventCursor, Handle: d.foreground, Point: d.cursor})
	return nil
}

func (d *Desktop) MouseButton(down bool) error {
	d.mu.Lock()
	if down {
		d.buttonDown = true
		d.mu.Unlock()
		return nil
	}
	if !d.buttonDown {
		d.mu.Unlock()
		return nil
	}
	d.buttonDown = false

	h := d.foreground
	rel := d.cursor
	if w := d.find(h); w != nil {
		rel = image.Point{X: d.cursor.X - w.Rect.Left, Y: d.cursor.Y - w.Rect.Top}
	}
	d.record(Event{Kind: EventClick, Handle: h, Point: rel})
	hook := d.OnClick
	d.mu.Unlock()

	if hook != nil {
		hook(h, rel)
	}
	return nil
}

func (d *Desktop) KeyChord(vks ...uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(Event{Kind: EventChord, Handle: d.foreground, Keys: append([]uint16(nil), vks...)})
	return nil
}

func (d *Desktop) KeyPressed(vk uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pressed[vk]
}

// Capture paints the whole region with the next scripted color of the
// window under (x, y). Uncovered screen reads black.
func (d *Desktop) Capture(x, y, w, h int) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := color.RGBA{A: 0xFF}
	p := image.Point{X: x, Y: y}
	for _, win := range d.windows {
		if !win.Visible || !win.Rect.Contains(p) {
			continue
		}
		if len(win.Colors) > 0 {
			c = win.Colors[0]
			if len(win.Colors) > 1 {
				win.Colors = win.Colors[1:]
			}
		}
		break
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			img.SetRGBA(dx, dy, c)
		}
	}
	return img, nil
}

func (d *Desktop) ProcessAlive(pid uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive[pid]
}

func (d *Desktop) ProcessesByName(name string) ([]uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var pids []uint32
	for pid, n := range d.names {
		if strings.EqualFold(n, name) && d.alive[pid] {
			pids = append(pids, pid)
		}
	}
	slices.Sort(pids)
	return pids, nil
}

var _ winapi.Platform = (*Desktop)(nil)
