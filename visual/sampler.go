package visual

import (
	"go.uber.org/zap"
	"image"
	"image/color"
	"lobby-pilot/applog"
	"lobby-pilot/winapi"
)

// ButtonState is what the start/accept button looks like. The zero value is
// the conservative NotReady.
type ButtonState uint8

const (
	NotReady ButtonState = iota
	Ready
)

func (s ButtonState) String() string {
	if s == Ready {
		return "ready"
	}
	return "notReady"
}

const (
	// dominanceMargin is how far one channel must exceed both others.
	dominanceMargin = 20
	blockSize       = 2
)

// StateFunc reads the button state at offset inside the window rectangle.
type StateFunc func(rect winapi.Rect, offset image.Point) ButtonState

// Classify maps an averaged color onto a button state: green-dominant is
// Ready, anything else (red-dominant or ambiguous) is NotReady.
func Classify(c color.RGBA) ButtonState {
	r, g, b := int(c.R), int(c.G), int(c.B)
	if r > g+dominanceMargin && r > b+dominanceMargin {
		return NotReady
	}
	if g > r+dominanceMargin && g > b+dominanceMargin {
		return Ready
	}
	return NotReady
}

// AverageColor is the integer mean of every pixel's RGB channels.
func AverageColor(img image.Image) color.RGBA {
	if img == nil {
		return color.RGBA{}
	}

	bounds := img.Bounds()
	var rSum, gSum, bSum, count uint32
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			rSum += uint32(c.R)
			gSum += uint32(c.G)
			bSum += uint32(c.B)
			count++
		}
	}

	if count == 0 {
		return color.RGBA{}
	}
	return color.RGBA{
		R: uint8(rSum / count),
		G: uint8(gSum / count),
		B: uint8(bSum / count),
		A: 0xFF,
	}
}

type Sampler struct {
	screen winapi.Screen
}

func NewSampler(screen winapi.Screen) *Sampler {
	return &Sampler{screen: screen}
}

// Sample captures the 2x2 block at offset inside rect and classifies it.
// A failed capture reads as NotReady.
func (s *Sampler) Sample(rect winapi.Rect, offset image.Point) ButtonState {
	p := rect.At(offset)
	img, err := s.screen.Capture(p.X, p.Y, blockSize, blockSize)
	if err != nil {
		applog.Debug("Could not capture button pixels",
			zap.Int("x", p.X),
			zap.Int("y", p.Y),
			zap.Error(err),
		)
		return NotReady
	}
	return Classify(AverageColor(img))
}
