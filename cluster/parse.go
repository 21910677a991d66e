package cluster

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"spotfeed/cty"
	"spotfeed/spot"
)

// The two wire grammars are tried in a fixed order per line: the extended
// caret-delimited "CC" record first, then the classic "DX de" layout. The
// grammars are disjoint in practice but both must be supported on the same
// session since nodes emit classic lines until the extended format is
// negotiated.

// ccSpotRE matches one CC record. The layout is positional with 19
// caret-separated fields; a line with any other caret count must not match,
// which the anchored per-field classes enforce.
//
// Fields: 0 header, 1 frequency, 2 DX call, 3 unused, 4 time HHMM[Z],
// 5 comment, 6 spotter (node suffix dropped on capture), 7-8 unused,
// 9 country name, 10-15 unused, 16 grid, 17 unused, 18 trailing.
var ccSpotRE = regexp.MustCompile(`^CC\d+\^` +
	`(\d+(?:\.\d+)?)\^` + // 1: frequency, kHz
	`([A-Za-z0-9/]+(?:-[A-Za-z0-9]+)?)\^` + // 2: DX call
	`[^^]*\^` + // 3
	`(\d{4})Z?\^` + // 4: time
	`([^^]*)\^` + // 5: comment
	`([A-Za-z0-9/]+?)[-#0-9]*\^` + // 6: spotter
	`[^^]*\^[^^]*\^` + // 7-8
	`([^^]*)\^` + // 9: country name
	`(?:[^^]*\^){6}` + // 10-15
	`([A-Za-z0-9]*)\^` + // 16: grid
	`[^^]*\^` + // 17
	`[^^]*$`) // 18: trailing

// classicSpotRE matches the traditional spot line:
//
//	DX de W3LPL:    14205.0  EA8TJ   CW 15 dB 25 WPM CQ   1847Z FN20
//
// The comment is the non-greedy span between the DX call and the time
// group; the grid is captured only when a locator-shaped token immediately
// follows the Z.
var classicSpotRE = regexp.MustCompile(`^DX de ([A-Za-z0-9/\-#]+):\s+` +
	`(\d+(?:\.\d+)?)\s+` + // frequency
	`([A-Za-z0-9/\-]+)` + // DX call
	`(?:\s+(.*?))?` + // comment, non-greedy
	`\s+(\d{4})Z` + // time
	`(?:\s+([A-Za-z]{2}\d{2}(?:[A-Za-z]{2})?)\b)?` + // optional grid
	`.*$`)

var gridRE = regexp.MustCompile(`^[A-Za-z]{2}\d{2}(?:[A-Za-z]{2})?$`)

// Parser turns one raw protocol line into a ParsedSpot. Malformed input
// never errors out of the parser; lines matching neither grammar simply
// report no match so one garbled line can never abort a session.
type Parser struct {
	prefixes *cty.Table
	now      func() time.Time // injectable for tests
}

// NewParser builds a parser over the given prefix table. The table may be
// nil, in which case country and continent stay unresolved.
func NewParser(prefixes *cty.Table) *Parser {
	return &Parser{prefixes: prefixes, now: time.Now}
}

// Parse attempts both grammars in order; the first match wins.
func (p *Parser) Parse(line string) (*spot.ParsedSpot, bool) {
	if s, ok := p.parseCC(line); ok {
		return s, true
	}
	return p.parseClassic(line)
}

func (p *Parser) parseCC(line string) (*spot.ParsedSpot, bool) {
	m := ccSpotRE.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	freq, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, false
	}
	when, ok := p.spotTime(m[3])
	if !ok {
		return nil, false
	}
	// The grammar admits tokens that are not plausible callsigns (bare
	// words, punctuation relics); reject those before they enter the
	// pipeline.
	dxCall := spot.NormalizeCallsign(m[2])
	if !spot.IsValidCallsign(dxCall) {
		return nil, false
	}
	s := &spot.ParsedSpot{
		DXCall:       dxCall,
		Spotter:      spot.NormalizeCallsign(m[5]),
		FrequencyKHz: freq,
		Comment:      strings.TrimSpace(m[4]),
		Time:         when,
		Grid:         normalizeGrid(m[7]),
	}
	p.finish(s)
	// The wire record carries a country name; trust the prefix table first
	// and fall back to the wire field when the prefix is unknown.
	if s.Country == "" {
		s.Country = strings.TrimSpace(m[6])
	}
	return s, true
}

func (p *Parser) parseClassic(line string) (*spot.ParsedSpot, bool) {
	m := classicSpotRE.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	freq, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil, false
	}
	when, ok := p.spotTime(m[5])
	if !ok {
		return nil, false
	}
	dxCall := spot.NormalizeCallsign(m[3])
	if !spot.IsValidCallsign(dxCall) {
		return nil, false
	}
	s := &spot.ParsedSpot{
		DXCall:       dxCall,
		Spotter:      spot.StripNodeSuffix(m[1]),
		FrequencyKHz: freq,
		Comment:      strings.TrimSpace(m[4]),
		Time:         when,
		Grid:         normalizeGrid(m[6]),
	}
	p.finish(s)
	return s, true
}

// finish resolves the mode and the country metadata shared by both grammars.
func (p *Parser) finish(s *spot.ParsedSpot) {
	s.Mode = spot.ResolveMode(s.Comment, s.FrequencyKHz)
	if entry, ok := p.prefixes.Lookup(s.DXCall); ok {
		s.Country = entry.Country
		s.Continent = entry.Continent
		s.DXCCID = entry.ADIF
	}
}

// spotTime converts the 4-digit HHMM field into a UTC timestamp on the
// current day. A result more than 5 minutes in the future belongs to the
// previous UTC day, which handles feeds reporting times across midnight.
func (p *Parser) spotTime(hhmm string) (time.Time, bool) {
	if len(hhmm) != 4 {
		return time.Time{}, false
	}
	hour, err1 := strconv.Atoi(hhmm[0:2])
	minute, err2 := strconv.Atoi(hhmm[2:4])
	if err1 != nil || err2 != nil || hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	now := p.now().UTC()
	when := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if when.Sub(now) > 5*time.Minute {
		when = when.AddDate(0, 0, -1)
	}
	return when, true
}

func normalizeGrid(grid string) string {
	grid = strings.ToUpper(strings.TrimSpace(grid))
	if grid == "" || !gridRE.MatchString(grid) {
		return ""
	}
	return grid
}
