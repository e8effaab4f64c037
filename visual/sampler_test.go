package visual

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"image"
	"image/color"
	"lobby-pilot/winapi"
	"lobby-pilot/winapi/winapitest"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		c    color.RGBA
		want ButtonState
	}{
		{"red", color.RGBA{R: 200, G: 50, B: 50}, NotReady},
		{"green", color.RGBA{R: 50, G: 200, B: 50}, Ready},
		{"grey is ambiguous", color.RGBA{R: 100, G: 100, B: 100}, NotReady},
		{"blue is ambiguous", color.RGBA{R: 20, G: 20, B: 220}, NotReady},
		{"green within margin", color.RGBA{R: 100, G: 120, B: 50}, NotReady},
		{"green just over margin", color.RGBA{R: 100, G: 121, B: 50}, Ready},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.c))
		})
	}
}

func TestAverageColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 11, G: 20, B: 30, A: 255})
	img.SetRGBA(0, 1, color.RGBA{R: 10, G: 21, B: 30, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 10, G: 20, B: 33, A: 255})

	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, AverageColor(img), "integer division floors")
	assert.Equal(t, color.RGBA{}, AverageColor(image.NewRGBA(image.Rectangle{})))
	assert.Equal(t, color.RGBA{}, AverageColor(nil))
}

func TestSamplerReadsOffsetInsideWindow(t *testing.T) {
	d := winapitest.NewDesktop()
	left := d.AddClient(1, "cs2.exe", winapi.Rect{Left: 0, Width: 383, Height: 280})
	right := d.AddClient(2, "cs2.exe", winapi.Rect{Left: 383, Width: 383, Height: 280})
	d.SetColors(left, winapitest.Red)
	d.SetColors(right, winapitest.Green)

	s := NewSampler(d)
	offset := image.Point{X: 289, Y: 271}

	assert.Equal(t, NotReady, s.Sample(winapi.Rect{Left: 0, Width: 383, Height: 280}, offset))
	assert.Equal(t, Ready, s.Sample(winapi.Rect{Left: 383, Width: 383, Height: 280}, offset))
}

type failingScreen struct{}

func (failingScreen) Capture(_, _, _, _ int) (image.Image, error) {
	return nil, errors.New("no display")
}

func TestSamplerCaptureFailureIsNotReady(t *testing.T) {
	var state StateFunc = NewSampler(failingScreen{}).Sample
	assert.Equal(t, NotReady, state(winapi.Rect{}, image.Point{}))
}

func TestButtonStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "notReady", NotReady.String())
}
