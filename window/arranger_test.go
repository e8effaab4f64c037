package window

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lobby-pilot/fault"
	"lobby-pilot/winapi"
	"lobby-pilot/winapi/winapitest"
	"testing"
)

func TestArrangePlacesWindowsInSlots(t *testing.T) {
	d := winapitest.NewDesktop()
	h1 := d.AddClient(1, "cs2.exe", winapi.Rect{Left: 900, Top: 40, Width: 800, Height: 600})
	h3 := d.AddClient(3, "cs2.exe", winapi.Rect{Left: 10, Top: 10, Width: 800, Height: 600})
	d.Update(h3, func(w *winapitest.Window) { w.Minimized = true })

	targets := []Target{
		testTarget{login: "alpha", pid: 1},
		testTarget{login: "missing", pid: 2},
		testTarget{login: "gamma", pid: 3},
	}

	arranger := NewArranger(d, NewLocator(d))
	placed, err := arranger.Arrange(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 2, placed)

	w1, _ := d.Window(h1)
	w3, _ := d.Window(h3)
	assert.Equal(t, winapi.Rect{Left: 0, Top: 0, Width: 383, Height: 280}, w1.Rect)
	assert.Equal(t, winapi.Rect{Left: 383, Top: 0, Width: 383, Height: 280}, w3.Rect,
		"a skipped target must not consume a slot")
	assert.Equal(t, "[PILOT] alpha", w1.Title)
	assert.Equal(t, "[PILOT] gamma", w3.Title)
	assert.False(t, w3.Minimized)
}

func TestArrangeIsDeterministic(t *testing.T) {
	run := func() []winapi.Rect {
		d := winapitest.NewDesktop()
		var handles []winapi.Handle
		for pid := uint32(1); pid <= 4; pid++ {
			handles = append(handles, d.AddClient(pid, "cs2.exe", winapi.Rect{Left: int(pid) * 7, Width: 50, Height: 50}))
		}
		targets := []Target{
			testTarget{"d", 4}, testTarget{"b", 2}, testTarget{"a", 1}, testTarget{"c", 3},
		}
		_, err := NewArranger(d, NewLocator(d)).Arrange(context.Background(), targets)
		require.NoError(t, err)

		var rects []winapi.Rect
		for _, h := range handles {
			w, _ := d.Window(h)
			rects = append(rects, w.Rect)
		}
		return rects
	}

	first := run()
	assert.Equal(t, first, run())
	assert.Equal(t, Slot(2), first[0], "pid 1 is third in order")
	assert.Equal(t, Slot(0), first[3], "pid 4 is first in order")
}

func TestArrangeSkipsFailedMove(t *testing.T) {
	d := winapitest.NewDesktop()
	bad := d.AddClient(1, "cs2.exe", winapi.Rect{Width: 10, Height: 10})
	good := d.AddClient(2, "cs2.exe", winapi.Rect{Left: 50, Width: 10, Height: 10})
	d.Update(bad, func(w *winapitest.Window) { w.FailMove = true })

	placed, err := NewArranger(d, NewLocator(d)).Arrange(context.Background(), []Target{
		testTarget{"bad", 1}, testTarget{"good", 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, placed)

	w, _ := d.Window(good)
	assert.Equal(t, Slot(0), w.Rect)
}

func TestArrangeNothingPlaced(t *testing.T) {
	d := winapitest.NewDesktop()

	placed, err := NewArranger(d, NewLocator(d)).Arrange(context.Background(), []Target{testTarget{"ghost", 9}})
	assert.Equal(t, 0, placed)
	assert.ErrorIs(t, err, ErrNothingPlaced)
	assert.ErrorIs(t, err, fault.ErrUnavailable)
}

func TestArrangeCancelled(t *testing.T) {
	d := winapitest.NewDesktop()
	d.AddClient(1, "cs2.exe", winapi.Rect{Width: 10, Height: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewArranger(d, NewLocator(d)).Arrange(ctx, []Target{testTarget{"a", 1}})
	assert.ErrorIs(t, err, fault.ErrCancelled)
	assert.Empty(t, d.EventsOf(winapitest.EventMove), "no window may move after cancellation")
}
