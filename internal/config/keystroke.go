package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/barriernet/barriernet/internal/filter"
)

var modifierNames = map[string]uint16{
	"shift": 0x0001, "ctrl": 0x0002, "control": 0x0002,
	"alt": 0x0004, "altgr": 0x0008, "meta": 0x0010,
	"super": 0x0020, "cmd": 0x0020, "win": 0x0020,
}

// ParseKeystroke parses a "<key>+<mod>+<mod>" spec, e.g. "s+ctrl+alt", into
// a key id and modifier mask. The key token may be a numeric key id
// (decimal, or with a 0x/0o/0b prefix), one of a handful of named keys, or
// a single character, which stands for its byte value; anything else is
// rejected rather than guessed at, since the platform-specific key table
// itself is out of scope (§1).
func ParseKeystroke(spec string) (key uint16, mods uint16, err error) {
	parts := strings.Split(spec, "+")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return 0, 0, fmt.Errorf("empty keystroke spec")
	}

	keyToken := strings.TrimSpace(parts[0])
	key, err = resolveKeyToken(keyToken)
	if err != nil {
		return 0, 0, err
	}

	for _, m := range parts[1:] {
		name := strings.ToLower(strings.TrimSpace(m))
		bit, ok := modifierNames[name]
		if !ok {
			return 0, 0, fmt.Errorf("unknown modifier %q", m)
		}
		mods |= bit
	}
	return key, mods, nil
}

var namedKeys = map[string]uint16{
	"scrolllock": 0xff14, "f1": 0xffbe, "f2": 0xffbf, "f3": 0xffc0,
	"f12": 0xffc9, "pause": 0xff13,
}

func resolveKeyToken(tok string) (uint16, error) {
	if n, err := strconv.ParseUint(tok, 0, 16); err == nil {
		return uint16(n), nil
	}
	if id, ok := namedKeys[strings.ToLower(tok)]; ok {
		return id, nil
	}
	if len(tok) == 1 {
		return uint16(tok[0]), nil
	}
	return 0, fmt.Errorf("unrecognized key token %q", tok)
}

// ParseAction parses one of the action forms a keystroke line may list
// (§4.8): lockCursorToScreen[(on|off|toggle)], switchToScreen(name),
// toggleScreen, switchInDirection(left|right|top|bottom),
// keyboardBroadcast(on|off). keyboardBroadcast reads a single argument:
// "on" turns broadcast on, anything else turns it off; a screen list is
// not parsed.
func ParseAction(raw string) (filter.Action, error) {
	name, arg, hasArg := splitCall(raw)
	switch strings.ToLower(name) {
	case "lockcursortoscreen":
		mode := filter.LockToggle
		switch strings.ToLower(arg) {
		case "", "toggle":
			mode = filter.LockToggle
		case "on":
			mode = filter.LockOn
		case "off":
			mode = filter.LockOff
		default:
			return nil, fmt.Errorf("lockCursorToScreen: unknown mode %q", arg)
		}
		return filter.LockCursorToScreen{Mode: mode}, nil

	case "switchtoscreen":
		if !hasArg || arg == "" {
			return nil, fmt.Errorf("switchToScreen: missing screen name")
		}
		return filter.SwitchToScreen{Name: arg}, nil

	case "togglescreen":
		return filter.ToggleScreen{}, nil

	case "switchindirection":
		edge, ok := edgeNames[strings.ToLower(arg)]
		if !ok {
			return nil, fmt.Errorf("switchInDirection: unknown direction %q", arg)
		}
		return filter.SwitchInDirection{Edge: int(edge)}, nil

	case "keyboardbroadcast":
		on := strings.EqualFold(arg, "on")
		return filter.KeyboardBroadcast{On: on}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", name)
	}
}

// splitCall splits "name(arg)" into name and arg, or returns the bare
// string as name with hasArg=false when there is no parenthesized form.
func splitCall(raw string) (name, arg string, hasArg bool) {
	raw = strings.TrimSpace(raw)
	open := strings.Index(raw, "(")
	if open < 0 || !strings.HasSuffix(raw, ")") {
		return raw, "", false
	}
	return strings.TrimSpace(raw[:open]), strings.TrimSpace(raw[open+1 : len(raw)-1]), true
}
