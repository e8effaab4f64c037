package pilot

import (
	"context"
	"go.uber.org/zap"
	"lobby-pilot/applog"
	"lobby-pilot/launcher"
	"lobby-pilot/util"
	"lobby-pilot/winapi"
	"time"
)

const hotkeyPollInterval = 50 * time.Millisecond

// watchHotkey polls the keyboard until ctx is done and calls cancel once the
// whole hotkey chord is held down.
func watchHotkey(ctx context.Context, in winapi.Input, hotkey launcher.Hotkey, clock util.Clock, cancel context.CancelFunc) {
	keys := hotkey.Keys()
	for {
		if err := clock.Sleep(ctx, hotkeyPollInterval); err != nil {
			return
		}
		if chordPressed(in, keys) {
			applog.Warn("Cancel hotkey pressed, stopping", zap.Uint16s("keys", keys))
			cancel()
			return
		}
	}
}

func chordPressed(in winapi.Input, keys []uint16) bool {
	for _, vk := range keys {
		if !in.KeyPressed(vk) {
			return false
		}
	}
	return len(keys) > 0
}
