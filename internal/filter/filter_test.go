package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	actions []Action
}

func (d *recordingDispatcher) Dispatch(a Action) {
	d.actions = append(d.actions, a)
}

func TestKeystrokeConditionIgnoresDecorativeModifiers(t *testing.T) {
	cond := KeystrokeCondition{Key: 65, ModMask: 0x01}
	matched, activating := cond.Match(Event{Kind: EventKeyPress, Key: 65, ModMask: 0x01 | 0x0400})
	require.True(t, matched)
	require.True(t, activating)
}

func TestKeystrokeConditionRejectsWrongKey(t *testing.T) {
	cond := KeystrokeCondition{Key: 65, ModMask: 0x01}
	matched, _ := cond.Match(Event{Kind: EventKeyPress, Key: 66, ModMask: 0x01})
	require.False(t, matched)
}

func TestMouseButtonConditionMatchesPressAndRelease(t *testing.T) {
	cond := MouseButtonCondition{Button: 1}
	matched, activating := cond.Match(Event{Kind: EventButtonPress, Button: 1})
	require.True(t, matched)
	require.True(t, activating)

	matched, activating = cond.Match(Event{Kind: EventButtonRelease, Button: 1})
	require.True(t, matched)
	require.False(t, activating)
}

func TestScreenConnectedConditionEmptyNameMatchesAny(t *testing.T) {
	cond := ScreenConnectedCondition{}
	matched, _ := cond.Match(Event{Kind: EventServerConnected, ScreenName: "office-left"})
	require.True(t, matched)
}

func TestScreenConnectedConditionSpecificName(t *testing.T) {
	cond := ScreenConnectedCondition{Name: "office-left"}
	matched, _ := cond.Match(Event{Kind: EventServerConnected, ScreenName: "laptop"})
	require.False(t, matched)
}

func TestListDispatchesActivateOnPress(t *testing.T) {
	list := &List{Rules: []Rule{
		{
			Condition:  KeystrokeCondition{Key: 1, ModMask: 0},
			Activate:   []Action{LockCursorToScreen{Mode: LockOn}},
			Deactivate: []Action{LockCursorToScreen{Mode: LockOff}},
		},
	}}
	d := &recordingDispatcher{}
	list.Handle(Event{Kind: EventKeyPress, Key: 1}, d)
	require.Equal(t, []Action{LockCursorToScreen{Mode: LockOn}}, d.actions)
}

func TestListDispatchesDeactivateOnRelease(t *testing.T) {
	list := &List{Rules: []Rule{
		{
			Condition:  KeystrokeCondition{Key: 1, ModMask: 0},
			Activate:   []Action{LockCursorToScreen{Mode: LockOn}},
			Deactivate: []Action{LockCursorToScreen{Mode: LockOff}},
		},
	}}
	d := &recordingDispatcher{}
	list.Handle(Event{Kind: EventKeyRelease, Key: 1}, d)
	require.Equal(t, []Action{LockCursorToScreen{Mode: LockOff}}, d.actions)
}

func TestListSkipsNonMatchingRules(t *testing.T) {
	list := &List{Rules: []Rule{
		{Condition: KeystrokeCondition{Key: 99}, Activate: []Action{ToggleScreen{}}},
	}}
	d := &recordingDispatcher{}
	list.Handle(Event{Kind: EventKeyPress, Key: 1}, d)
	require.Empty(t, d.actions)
}
