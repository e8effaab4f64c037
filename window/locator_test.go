package window

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"lobby-pilot/winapi"
	"lobby-pilot/winapi/winapitest"
	"testing"
)

type testTarget struct {
	login string
	pid   uint32
}

func (t testTarget) Login() string     { return t.login }
func (t testTarget) ProcessID() uint32 { return t.pid }

func TestLocatePicksLeftmostThenTopmost(t *testing.T) {
	d := winapitest.NewDesktop()
	d.SetProcess(42, "cs2.exe", true)

	add := func(rect winapi.Rect, title string, visible, parent bool) winapi.Handle {
		return d.AddWindow(winapitest.Window{Window: winapi.Window{
			PID: 42, Title: title, Visible: visible, HasParent: parent, Rect: rect,
		}})
	}

	add(winapi.Rect{Left: 500, Top: 0}, "right", true, false)
	lowerLeft := add(winapi.Rect{Left: 100, Top: 300}, "lower left", true, false)
	upperLeft := add(winapi.Rect{Left: 100, Top: 50}, "upper left", true, false)
	add(winapi.Rect{Left: 0, Top: 0}, "", true, false)
	add(winapi.Rect{Left: 0, Top: 0}, "hidden", false, false)
	add(winapi.Rect{Left: 0, Top: 0}, "child", true, true)

	w, ok := NewLocator(d).Locate(42)
	assert.True(t, ok)
	assert.Equal(t, upperLeft, w.Handle, "expected topmost of the leftmost windows")
	assert.NotEqual(t, lowerLeft, w.Handle)
}

func TestLocateNotFound(t *testing.T) {
	d := winapitest.NewDesktop()
	d.AddClient(1, "cs2.exe", winapi.Rect{Width: 10, Height: 10})

	locator := NewLocator(d)

	_, ok := locator.Locate(2)
	assert.False(t, ok, "foreign pid must not match")

	_, ok = locator.Locate(0)
	assert.False(t, ok, "zero pid never matches")

	d.EnumErr = errors.New("boom")
	_, ok = locator.Locate(1)
	assert.False(t, ok, "enumeration failure is downgraded to not found")
}

func TestByProcessListsVisibleWindowsOnce(t *testing.T) {
	d := winapitest.NewDesktop()
	a := d.AddClient(1, "cs2.exe", winapi.Rect{Width: 10, Height: 10})
	b := d.AddClient(2, "cs2.exe", winapi.Rect{Left: 20, Width: 10, Height: 10})
	d.AddClient(3, "steam.exe", winapi.Rect{Left: 40, Width: 10, Height: 10})
	d.AddWindow(winapitest.Window{Window: winapi.Window{PID: 1, Visible: false}})

	windows := NewLocator(d).ByProcess([]uint32{1, 2})

	var handles []winapi.Handle
	for _, w := range windows {
		handles = append(handles, w.Handle)
	}
	assert.Equal(t, []winapi.Handle{a, b}, handles)
}
