// Package screen holds the static data model of a screen and its neighbor
// topology (spec §3).
package screen

import "strings"

// Name is a canonical, case-insensitive screen identifier.
type Name string

// Canonical lowercases a raw screen name for map keys and comparisons.
func Canonical(raw string) Name {
	return Name(strings.ToLower(strings.TrimSpace(raw)))
}

// Shape is a screen's rectangle in its own local pixel space.
type Shape struct {
	X, Y, W, H int
}

// Contains reports whether (px, py) lies within the shape.
func (s Shape) Contains(px, py int) bool {
	return px >= s.X && px < s.X+s.W && py >= s.Y && py < s.Y+s.H
}

// Screen is one node of the topology: a canonical name, its live shape
// (once connected), last-known cursor position, and jump-zone width.
type Screen struct {
	Name      Name
	Aliases   []Name
	Shape     Shape
	CursorX   int
	CursorY   int
	JumpZone  int // pixels; set by config for every screen, server default if zero
	Options   map[string]string
	connected bool
}

// NewScreen creates a Screen declared in config but not yet connected.
func NewScreen(name Name) *Screen {
	return &Screen{Name: name, Options: map[string]string{}}
}

// Connect marks the screen live with shape as reported by its DINF message.
func (s *Screen) Connect(shape Shape) {
	s.Shape = shape
	s.connected = true
}

// Disconnect marks the screen no longer live; its last shape and cursor
// position are retained for reference.
func (s *Screen) Disconnect() {
	s.connected = false
}

// Connected reports whether the screen currently has a live connection.
func (s *Screen) Connected() bool {
	return s.connected
}
