// Package modifiers implements the per-connection modifier translation
// table of spec §4.5: incoming key events whose modifier mask references
// one modifier are rewritten to reference another, as configured by a
// DSOP options message, until reset to identity by CROP.
package modifiers

// ID names one of the six translatable modifiers.
type ID uint8

const (
	Shift ID = iota
	Control
	Alt
	AltGr
	Meta
	Super
	numModifiers
)

// Side distinguishes the physical left/right key of a modifier family.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

// Table is a per-connection modifier remap, defaulting to the identity
// mapping (§4.5: "each side keeps an identity map").
type Table struct {
	remap [numModifiers]ID
}

// NewTable returns a Table initialized to identity.
func NewTable() *Table {
	t := &Table{}
	t.Reset()
	return t
}

// Reset restores the identity mapping, as CROP does on the wire.
func (t *Table) Reset() {
	for i := range t.remap {
		t.remap[i] = ID(i)
	}
}

// Set installs a remap: key events whose mask references from are rewritten
// to reference to instead.
func (t *Table) Set(from, to ID) {
	if from < numModifiers {
		t.remap[from] = to
	}
}

// Translate returns the modifier that from's mask bit should be rewritten
// to under the current table.
func (t *Table) Translate(from ID) ID {
	if from >= numModifiers {
		return from
	}
	return t.remap[from]
}

// ApplyOptions installs the remap pairs carried by a DSOP message (§4.5,
// §6.2: each pair is {modifier_map_for_X, Y}).
func (t *Table) ApplyOptions(pairs []uint32) {
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Set(ID(pairs[i]), ID(pairs[i+1]))
	}
}

// sideKeys gives the left/right keysym pair for each modifier that has
// distinct physical keys, per the X11 keysym values the wire protocol's key
// IDs are drawn from (XWindowsKeyState-style XK_*_L/XK_*_R pairs). AltGr has
// no side-distinct keysym (XK_ISO_Level3_Shift) so it maps to itself on
// both sides.
var sideKeys = [numModifiers][2]uint16{
	Shift:   {0xFFE1, 0xFFE2}, // XK_Shift_L, XK_Shift_R
	Control: {0xFFE3, 0xFFE4}, // XK_Control_L, XK_Control_R
	Alt:     {0xFFE9, 0xFFEA}, // XK_Alt_L, XK_Alt_R
	AltGr:   {0xFE03, 0xFE03}, // XK_ISO_Level3_Shift
	Meta:    {0xFFE7, 0xFFE8}, // XK_Meta_L, XK_Meta_R
	Super:   {0xFFEB, 0xFFEC}, // XK_Super_L, XK_Super_R
}

// sideOf reports which ID and Side a key code belongs to, if any.
func sideOf(key uint16) (id ID, side Side, ok bool) {
	for i, pair := range sideKeys {
		if key == pair[0] {
			return ID(i), SideLeft, true
		}
		if key == pair[1] {
			return ID(i), SideRight, true
		}
	}
	return 0, 0, false
}

// TranslateKey rewrites a modifier key code the same way TranslateMask
// rewrites its mask bit, preserving the physical side: a remap of Alt to
// Meta turns XK_Alt_L into XK_Meta_L, not XK_Meta_R. Non-modifier key codes
// pass through unchanged.
func (t *Table) TranslateKey(key uint16) uint16 {
	id, side, ok := sideOf(key)
	if !ok {
		return key
	}
	target := t.Translate(id)
	if target >= numModifiers {
		return key
	}
	return sideKeys[target][side]
}

// TranslateMask rewrites every translatable-modifier bit of mask (one bit
// per ID, bit position equal to the ID's numeric value) through the table,
// leaving any other bit of the mask untouched. The wire protocol fixes the
// opcodes but not a canonical bit layout for the six IDs; this is this
// implementation's chosen layout, the same one internal/config's modifier
// names use.
func (t *Table) TranslateMask(mask uint16) uint16 {
	var out uint16
	for id := ID(0); id < numModifiers; id++ {
		if mask&(1<<uint(id)) == 0 {
			continue
		}
		out |= 1 << uint(t.Translate(id))
	}
	out |= mask &^ ((1 << uint(numModifiers)) - 1)
	return out
}
