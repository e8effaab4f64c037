package launcher

import (
	"fmt"
	"lobby-pilot/winapi"
	"strconv"
	"strings"
)

// Hotkey is a chord of modifiers and exactly one key, as virtual key codes.
type Hotkey struct {
	Modifiers []uint16
	Key       uint16
}

// Keys returns the modifiers followed by the key.
func (h Hotkey) Keys() []uint16 {
	return append(append([]uint16(nil), h.Modifiers...), h.Key)
}

var modifierKeys = map[string]uint16{
	"ctrl":    winapi.VKControl,
	"control": winapi.VKControl,
	"shift":   winapi.VKShift,
	"alt":     winapi.VKMenu,
}

// ParseHotkey parses combinations such as "ctrl+q" or "ctrl+shift+f9".
func ParseHotkey(s string) (Hotkey, error) {
	var h Hotkey
	if strings.TrimSpace(s) == "" {
		return h, fmt.Errorf("empty hotkey")
	}

	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		if vk, ok := modifierKeys[part]; ok {
			h.Modifiers = append(h.Modifiers, vk)
			continue
		}

		vk, err := parseKey(part)
		if err != nil {
			return Hotkey{}, err
		}
		if h.Key != 0 {
			return Hotkey{}, fmt.Errorf("hotkey %q has more than one key", s)
		}
		h.Key = vk
	}

	if h.Key == 0 {
		return Hotkey{}, fmt.Errorf("hotkey %q has no key", s)
	}
	return h, nil
}

func parseKey(s string) (uint16, error) {
	switch {
	case len(s) == 1 && s[0] >= 'a' && s[0] <= 'z':
		return uint16('A' + (s[0] - 'a')), nil
	case len(s) == 1 && s[0] >= '0' && s[0] <= '9':
		return uint16(s[0]), nil
	case s == "esc" || s == "escape":
		return winapi.VKEscape, nil
	case len(s) > 1 && s[0] == 'f':
		n, err := strconv.Atoi(s[1:])
		if err == nil && n >= 1 && n <= 24 {
			return uint16(0x70 + n - 1), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", s)
}
