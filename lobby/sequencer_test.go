package lobby

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image"
	"lobby-pilot/fault"
	"lobby-pilot/winapi"
	"lobby-pilot/winapi/winapitest"
	"testing"
)

func leaderClicksPerInvite() []image.Point {
	clicks := []image.Point{{X: 375, Y: 8}, {X: 195, Y: 140}}
	for y := 142; y <= 217; y += 5 {
		clicks = append(clicks, image.Pt(235, y))
	}
	return append(clicks, image.Pt(235, 165))
}

func TestCollectRunsInviteScripts(t *testing.T) {
	h := newHarness(t, 5, DefaultConfig())
	team := &Team{Leader: h.member("A"), Bots: []Member{h.member("B"), h.member("E")}}

	require.NoError(t, h.seq.Collect(context.Background(), team))

	botClicks := []image.Point{{X: 375, Y: 8}, {X: 375, Y: 8}, {X: 204, Y: 157}, {X: 237, Y: 157}, {X: 306, Y: 37}}
	assert.Equal(t, botClicks, h.desk.ClicksOn(h.handles["B"]))
	assert.Equal(t, botClicks, h.desk.ClicksOn(h.handles["E"]))

	perInvite := leaderClicksPerInvite()
	assert.Len(t, perInvite, 19)
	assert.Equal(t, append(append([]image.Point(nil), perInvite...), perInvite...), h.desk.ClicksOn(h.handles["A"]))

	assert.Empty(t, h.desk.ClicksOn(h.handles["C"]))
	assert.Empty(t, h.desk.ClicksOn(h.handles["D"]))
	assert.Equal(t, 2, h.clip.pastes)
	assert.Equal(t, 2, h.clip.reads)
}

func TestCollectAcceptsAfterAllInvites(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())
	team := &Team{Leader: h.member("A"), Bots: []Member{h.member("B")}}

	require.NoError(t, h.seq.Collect(context.Background(), team))

	var order []winapi.Handle
	for _, e := range h.desk.EventsOf(winapitest.EventClick) {
		if len(order) == 0 || order[len(order)-1] != e.Handle {
			order = append(order, e.Handle)
		}
	}
	assert.Equal(t, []winapi.Handle{h.handles["B"], h.handles["A"], h.handles["B"]}, order,
		"bot copies, leader invites, bot accepts")
}

func TestCollectSkipsMissingBot(t *testing.T) {
	h := newHarness(t, 5, DefaultConfig())
	team := &Team{Leader: h.member("A"), Bots: []Member{h.member("B"), h.member("E")}}
	h.desk.RemoveWindow(h.handles["B"])

	require.NoError(t, h.seq.Collect(context.Background(), team))

	assert.Len(t, h.desk.ClicksOn(h.handles["A"]), 19, "only the located bot is invited")
	assert.Len(t, h.desk.ClicksOn(h.handles["E"]), 5)
	assert.Equal(t, 1, h.clip.pastes)
}

func TestCollectWithoutLeaderStillRunsBots(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())
	team := &Team{Leader: h.member("A"), Bots: []Member{h.member("B")}}
	h.desk.RemoveWindow(h.handles["A"])

	require.NoError(t, h.seq.Collect(context.Background(), team))

	assert.Len(t, h.desk.ClicksOn(h.handles["B"]), 5)
	assert.Zero(t, h.clip.pastes)
}

func TestCollectStopsOnCancel(t *testing.T) {
	h := newHarness(t, 5, DefaultConfig())
	team := &Team{Leader: h.member("A"), Bots: []Member{h.member("B"), h.member("E")}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.desk.OnClick = func(winapi.Handle, image.Point) { cancel() }

	err := h.seq.Collect(ctx, team)
	assert.ErrorIs(t, err, fault.ErrCancelled)
	assert.Len(t, h.desk.EventsOf(winapitest.EventClick), 1, "no input after cancellation")
}

func TestDisbandUsesFirstBotOnly(t *testing.T) {
	h := newHarness(t, 5, DefaultConfig())
	team := &Team{Leader: h.member("A"), Bots: []Member{h.member("B"), h.member("E")}}

	require.NoError(t, h.seq.Disband(context.Background(), team))

	assert.Equal(t, []image.Point{{X: 375, Y: 8}}, h.desk.ClicksOn(h.handles["B"]))
	assert.Empty(t, h.desk.ClicksOn(h.handles["A"]))
	assert.Empty(t, h.desk.ClicksOn(h.handles["E"]))
}

func TestDisbandToleratesMissingBot(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())
	team := &Team{Leader: h.member("A"), Bots: []Member{h.member("B")}}
	h.desk.RemoveWindow(h.handles["B"])

	assert.NoError(t, h.seq.Disband(context.Background(), team))
	assert.Empty(t, h.desk.EventsOf(winapitest.EventClick))
}

func TestDisbandWithoutBotsIsNoop(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())
	assert.NoError(t, h.seq.Disband(context.Background(), &Team{Leader: h.member("A")}))
	assert.Empty(t, h.desk.Events())
}
