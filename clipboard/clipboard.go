// Package clipboard reads the shared system clipboard and pastes it into the
// focused client window.
package clipboard

import (
	"context"
	sysclip "github.com/atotto/clipboard"
	"lobby-pilot/fault"
	"strings"
)

// Paster sends the paste chord to the focused window.
type Paster interface {
	Paste(ctx context.Context) error
}

type Clipboard struct {
	read   func() (string, error)
	paster Paster
}

func New(paster Paster) *Clipboard {
	return &Clipboard{
		read:   sysclip.ReadAll,
		paster: paster,
	}
}

// Text returns the clipboard contents without surrounding whitespace.
func (c *Clipboard) Text() (string, error) {
	text, err := c.read()
	if err != nil {
		return "", fault.Unavailable("ReadClipboard", 0, err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Clipboard) Paste(ctx context.Context) error {
	return c.paster.Paste(ctx)
}
