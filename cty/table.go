// Package cty loads and queries the country prefix table so parsed spots can
// be enriched with country/continent/DXCC metadata. The table is built once
// at startup and is immutable afterwards, so lookups need no locking.
package cty

import (
	"fmt"
	"io"
	"os"
	"strings"

	"howett.net/plist"
)

// Entry describes the metadata stored for one prefix.
type Entry struct {
	Country   string `plist:"Country"`
	Continent string `plist:"Continent"`
	ADIF      int    `plist:"ADIF"`
}

// Table maps uppercase letter prefixes to country metadata.
type Table struct {
	prefixes map[string]Entry
}

// maxPrefixLen bounds the longest-prefix probe: lookups try 4, then 3, then
// 2, then 1 leading characters.
const maxPrefixLen = 4

// NewTable builds a lookup table from a prefix map. Keys are normalized to
// uppercase; entries keyed longer than maxPrefixLen are kept but only
// reachable for callsigns whose letter run is at least that long.
func NewTable(prefixes map[string]Entry) *Table {
	data := make(map[string]Entry, len(prefixes))
	for k, v := range prefixes {
		norm := strings.ToUpper(strings.TrimSpace(k))
		if norm == "" {
			continue
		}
		data[norm] = v
	}
	return &Table{prefixes: data}
}

// Load reads a cty plist file into a Table.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cty plist: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes CTY data from an io.ReadSeeker (exposed for testing).
func LoadFromReader(r io.ReadSeeker) (*Table, error) {
	var raw map[string]Entry
	decoder := plist.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode cty plist: %w", err)
	}
	return NewTable(raw), nil
}

// Lookup resolves the country metadata for a DX callsign by longest-prefix
// match against its non-numeric leading letters, trying 4 characters down to
// 1. Unknown prefixes return ok=false.
func (t *Table) Lookup(call string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	letters := leadingLetters(strings.ToUpper(strings.TrimSpace(call)))
	if letters == "" {
		return Entry{}, false
	}
	n := len(letters)
	if n > maxPrefixLen {
		n = maxPrefixLen
	}
	for ; n > 0; n-- {
		if entry, ok := t.prefixes[letters[:n]]; ok {
			return entry, true
		}
	}
	return Entry{}, false
}

// Size returns the number of prefixes in the table.
func (t *Table) Size() int {
	if t == nil {
		return 0
	}
	return len(t.prefixes)
}

func leadingLetters(call string) string {
	for i := 0; i < len(call); i++ {
		c := call[i]
		if c >= 'A' && c <= 'Z' {
			continue
		}
		return call[:i]
	}
	return call
}
