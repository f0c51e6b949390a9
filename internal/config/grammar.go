// This file implements the hand-written recursive-descent parser for the
// screens/aliases/links/options config-file grammar of spec §6.3. The
// grammar is neither YAML nor JSON, so none of the teacher's or the wider
// example pack's structured-config libraries can parse it directly (see
// DESIGN.md); it feeds screen.Topology and filter.List once parsed.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/barriernet/barriernet/internal/filter"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/switching"
)

// ScreenDecl is one screen's declared options, parsed from a "screens"
// section entry before it is wired into a screen.Screen.
type ScreenDecl struct {
	Name    string
	Options map[string]string
}

// LinkDecl is one neighbor entry parsed from a "links" section.
type LinkDecl struct {
	From        string
	Edge        proto.Edge
	Start, End  float64
	To          string
	ToStart     float64
	ToEnd       float64
}

// Topology is the fully parsed configuration grammar result: declared
// screens, their aliases, and the neighbor links between them, plus any
// keystroke-action lines found under "options" (§6.3: "Hotkey actions
// appear under options as keystroke(...) = action[; action]").
type Topology struct {
	Screens  []ScreenDecl
	Aliases  map[string]string // alias -> canonical name
	Links    []LinkDecl
	Options  map[string]string
	Keystrokes []KeystrokeDecl
}

// KeystrokeDecl is one parsed "keystroke(<key>+<mods>) = <action>[; <action>]" line.
type KeystrokeDecl struct {
	Key     string
	Actions []string
}

var edgeNames = map[string]proto.Edge{
	"left": proto.EdgeLeft, "right": proto.EdgeRight,
	"top": proto.EdgeTop, "bottom": proto.EdgeBottom,
}

// ParseTopology parses the full config-file grammar from r: section blocks
// introduced by "section: name {" and closed by "end", screens listing
// canonical names with nested key/value option pairs, links listing
// per-screen per-direction neighbor entries, aliases mapping arbitrary
// names to a canonical screen.
func ParseTopology(r io.Reader) (*Topology, error) {
	p := &parser{sc: bufio.NewScanner(r)}
	topo := &Topology{Aliases: map[string]string{}, Options: map[string]string{}}

	for p.next() {
		line := p.line
		switch {
		case strings.HasPrefix(line, "section:"):
			name := strings.TrimSpace(strings.TrimPrefix(line, "section:"))
			name = strings.TrimSuffix(name, "{")
			name = strings.TrimSpace(name)
			if err := p.parseSection(name, topo); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("config: line %d: expected a section header, got %q", p.lineNo, line)
		}
	}
	if err := p.sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	return topo, nil
}

type parser struct {
	sc     *bufio.Scanner
	line   string
	lineNo int
}

// next advances to the next non-blank, non-comment line, trimmed.
func (p *parser) next() bool {
	for p.sc.Scan() {
		p.lineNo++
		l := strings.TrimSpace(p.sc.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		p.line = l
		return true
	}
	return false
}

func (p *parser) parseSection(name string, topo *Topology) error {
	switch name {
	case "screens":
		return p.parseScreens(topo)
	case "aliases":
		return p.parseAliases(topo)
	case "links":
		return p.parseLinks(topo)
	case "options":
		return p.parseOptions(topo)
	default:
		return fmt.Errorf("config: line %d: unknown section %q", p.lineNo, name)
	}
}

// parseScreens reads the flat form the grammar actually uses: one screen
// header per line ending in ":", followed by its "key = value" option
// lines, repeating until the section's single closing "end" (§6.3; no
// nested "end" per screen, matching how the upstream GUI writes this
// section).
func (p *parser) parseScreens(topo *Topology) error {
	var cur *ScreenDecl
	for p.next() {
		if p.line == "end" {
			return nil
		}
		if strings.HasSuffix(p.line, ":") {
			topo.Screens = append(topo.Screens, ScreenDecl{
				Name: strings.TrimSuffix(p.line, ":"), Options: map[string]string{},
			})
			cur = &topo.Screens[len(topo.Screens)-1]
			continue
		}
		if cur == nil {
			return fmt.Errorf("config: line %d: option outside any screen block", p.lineNo)
		}
		k, v, err := splitAssign(p.line)
		if err != nil {
			return fmt.Errorf("config: line %d: %w", p.lineNo, err)
		}
		cur.Options[k] = v
	}
	return fmt.Errorf("config: screens section: unexpected end of input")
}

// parseAliases reads the same flat shape: a canonical screen header
// followed by one alias name per line, until "end".
func (p *parser) parseAliases(topo *Topology) error {
	var canon string
	for p.next() {
		if p.line == "end" {
			return nil
		}
		if strings.HasSuffix(p.line, ":") {
			canon = strings.TrimSuffix(p.line, ":")
			continue
		}
		if canon == "" {
			return fmt.Errorf("config: line %d: alias outside any screen block", p.lineNo)
		}
		topo.Aliases[screenNameKey(p.line)] = canon
	}
	return fmt.Errorf("config: aliases section: unexpected end of input")
}

// parseLinks reads a screen header followed by its per-edge neighbor
// entries, until "end".
func (p *parser) parseLinks(topo *Topology) error {
	var from string
	for p.next() {
		if p.line == "end" {
			return nil
		}
		if strings.HasSuffix(p.line, ":") {
			from = strings.TrimSuffix(p.line, ":")
			continue
		}
		if from == "" {
			return fmt.Errorf("config: line %d: link outside any screen block", p.lineNo)
		}
		decl, err := parseLinkLine(from, p.line)
		if err != nil {
			return fmt.Errorf("config: line %d: %w", p.lineNo, err)
		}
		topo.Links = append(topo.Links, decl)
	}
	return fmt.Errorf("config: links section: unexpected end of input")
}

// parseOptions reads flat key = value pairs, special-casing
// "keystroke(<key>) = <action>[; <action>]" lines (§6.3).
func (p *parser) parseOptions(topo *Topology) error {
	for p.next() {
		if p.line == "end" {
			return nil
		}
		k, v, err := splitAssign(p.line)
		if err != nil {
			return fmt.Errorf("config: line %d: %w", p.lineNo, err)
		}
		if strings.HasPrefix(k, "keystroke(") && strings.HasSuffix(k, ")") {
			key := strings.TrimSuffix(strings.TrimPrefix(k, "keystroke("), ")")
			actions := splitActions(v)
			topo.Keystrokes = append(topo.Keystrokes, KeystrokeDecl{Key: key, Actions: actions})
			continue
		}
		topo.Options[k] = v
	}
	return nil
}

func splitActions(v string) []string {
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, a := range parts {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func splitAssign(line string) (key, value string, err error) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", fmt.Errorf("expected 'key = value', got %q", line)
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), nil
}

func screenNameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseLinkLine parses one "edge(start,end) = name(start,end)" entry;
// the fractional ranges default to the full [0,1) edge when omitted (§6.3).
func parseLinkLine(from, line string) (LinkDecl, error) {
	k, v, err := splitAssign(line)
	if err != nil {
		return LinkDecl{}, err
	}

	edgeName, start, end, err := parseEdgeSpec(k)
	if err != nil {
		return LinkDecl{}, err
	}
	edge, ok := edgeNames[edgeName]
	if !ok {
		return LinkDecl{}, fmt.Errorf("unknown edge %q", edgeName)
	}

	toName, toStart, toEnd, err := parseEdgeSpec(v)
	if err != nil {
		return LinkDecl{}, err
	}

	return LinkDecl{
		From: from, Edge: edge, Start: start, End: end,
		To: toName, ToStart: toStart, ToEnd: toEnd,
	}, nil
}

// parseEdgeSpec splits "name(start,end)" or bare "name" (defaulting the
// range to the full edge).
func parseEdgeSpec(s string) (name string, start, end float64, err error) {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "(")
	if open < 0 {
		return s, 0, 1, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", 0, 0, fmt.Errorf("malformed range in %q", s)
	}
	name = strings.TrimSpace(s[:open])
	inner := s[open+1 : len(s)-1]
	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		return "", 0, 0, fmt.Errorf("expected start,end in %q", s)
	}
	start, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad range start in %q: %w", s, err)
	}
	end, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad range end in %q: %w", s, err)
	}
	return name, start, end, nil
}

// BuildScreenTopology wires a parsed Topology's screens/aliases/links into
// a live screen.Topology. Every screen gets JumpZone = jumpZoneDefault; no
// per-screen jump zone option is read.
func BuildScreenTopology(t *Topology, jumpZoneDefault int) (*screen.Topology, error) {
	out := screen.NewTopology()

	for _, decl := range t.Screens {
		s := screen.NewScreen(screen.Canonical(decl.Name))
		s.JumpZone = jumpZoneDefault
		if raw, ok := decl.Options["switchCorners"]; ok {
			// Accepted for forward-compatibility; corner size itself is a
			// Policies field, not per-screen, so it is read by the caller
			// building switching.Policies rather than stored here.
			_ = raw
		}
		for k, v := range decl.Options {
			s.Options[k] = v
		}
		out.AddScreen(s)
	}

	for alias, canon := range t.Aliases {
		if s, ok := out.Screen(screen.Canonical(canon)); ok {
			s.Aliases = append(s.Aliases, screen.Name(alias))
			out.AddScreen(s) // re-index the alias
		}
	}

	for _, l := range t.Links {
		from, ok := out.Resolve(l.From)
		if !ok {
			return nil, fmt.Errorf("config: link from undeclared screen %q", l.From)
		}
		if _, ok := out.Resolve(l.To); !ok && l.To != "" {
			return nil, fmt.Errorf("config: link to undeclared screen %q", l.To)
		}
		to := screen.Canonical(l.To)
		if err := out.AddLink(from.Name, l.Edge, l.Start, l.End, to); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	return out, nil
}

// BuildFilterList turns the parsed keystroke declarations into a
// filter.List, resolving each declared action string via ParseAction
// (§4.8 "actions post engine-level events"). Unparseable actions are
// skipped with their line retained in err's message rather than aborting
// the whole config load, since a single bad hotkey action should not take
// down an otherwise valid config.
func BuildFilterList(t *Topology) (*filter.List, error) {
	list := &filter.List{}
	var badLines []string

	for _, kd := range t.Keystrokes {
		key, mods, err := ParseKeystroke(kd.Key)
		if err != nil {
			badLines = append(badLines, fmt.Sprintf("keystroke(%s): %v", kd.Key, err))
			continue
		}
		rule := filter.Rule{Condition: filter.KeystrokeCondition{Key: key, ModMask: mods}}
		for _, raw := range kd.Actions {
			action, err := ParseAction(raw)
			if err != nil {
				badLines = append(badLines, fmt.Sprintf("action %q: %v", raw, err))
				continue
			}
			rule.Activate = append(rule.Activate, action)
		}
		list.Rules = append(list.Rules, rule)
	}

	if len(badLines) > 0 {
		return list, fmt.Errorf("config: %d hotkey line(s) skipped: %s", len(badLines), strings.Join(badLines, "; "))
	}
	return list, nil
}

// BuildPolicies reads the global "options" section entries the upstream GUI
// writes as top-level settings (switchDelay, switchDoubleTap,
// switchCornerSize, switchCorners) into the switching engine's Policies
// (§4.6). Options absent from t.Options keep the policy disabled.
func BuildPolicies(t *Topology) switching.Policies {
	var p switching.Policies

	if ms, err := strconv.Atoi(strings.TrimSpace(t.Options["switchDelay"])); err == nil && ms > 0 {
		p.SwitchDelay = time.Duration(ms) * time.Millisecond
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(t.Options["switchDoubleTap"])); err == nil && ms > 0 {
		p.TwoTap = time.Duration(ms) * time.Millisecond
	}
	if corners := strings.TrimSpace(t.Options["switchCorners"]); corners != "" && corners != "none" {
		if size, err := strconv.Atoi(strings.TrimSpace(t.Options["switchCornerSize"])); err == nil && size > 0 {
			p.CornerSize = size
		}
	}
	return p
}
