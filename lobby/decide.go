package lobby

import "lobby-pilot/visual"

// Decision is what one monitor tick does with the two leaders' start buttons.
type Decision struct {
	ClickA bool
	ClickB bool
	// Recheck asks to re-sample both leaders shortly after the click and to
	// click both when both turned Ready.
	Recheck bool
}

// Decide maps the leaders' button states onto clicks. Two NotReady buttons
// are left alone.
func Decide(a, b visual.ButtonState) Decision {
	switch {
	case a == visual.Ready && b == visual.Ready:
		return Decision{ClickA: true, ClickB: true}
	case a == visual.Ready:
		return Decision{ClickA: true, Recheck: true}
	case b == visual.Ready:
		return Decision{ClickB: true, Recheck: true}
	default:
		return Decision{}
	}
}
