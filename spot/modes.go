package spot

import "strings"

// modeMarkers is scanned in order against the uppercased comment; the first
// marker found wins. The order is deliberate: FT4 would otherwise never
// match after FT8 miss-hits, and SSB/USB/LSB must outrank CW so a comment
// like "CW style SSB op" classifies as SSB. Changing the order silently
// changes classification for comments carrying several mode keywords.
var modeMarkers = []struct {
	marker string
	mode   string
}{
	{"FT8", "FT8"},
	{"FT4", "FT4"},
	{"RTTY", "RTTY"},
	{"PSK", "PSK31"},
	{"SSB", "SSB"},
	{"USB", "SSB"},
	{"LSB", "SSB"},
	{"CW", "CW"},
	{"AM", "AM"},
	{"FM", "FM"},
	{"DIGI", "DIGI"},
	{"JT65", "JT65"},
	{"JT9", "JT9"},
}

// ResolveMode determines the operating mode for a spot: first a
// case-insensitive keyword scan of the comment, then the frequency
// inference table. The result is never empty.
func ResolveMode(comment string, freqKHz float64) string {
	upper := strings.ToUpper(comment)
	for _, m := range modeMarkers {
		if strings.Contains(upper, m.marker) {
			return m.mode
		}
	}
	return InferModeFromFreq(freqKHz)
}
