// Package spot defines the parsed spot record produced by the cluster line
// parsers, plus the callsign, band, and mode helpers shared by the rest of
// the ingestion pipeline.
package spot

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/zeebo/xxh3"
)

// ParsedSpot is one normalized spot report. It is produced once per accepted
// protocol line, tested against the dedup cache, and then either published or
// dropped; nothing in the pipeline retains it afterwards.
type ParsedSpot struct {
	DXCall       string    // spotted station, uppercase
	Spotter      string    // reporting station, uppercase, node suffix stripped
	FrequencyKHz float64   // always present
	Mode         string    // resolved from comment markers, else frequency inference
	Comment      string    // trimmed free text
	Time         time.Time // UTC, minute resolution from the HHMM field
	Country      string    // empty when the prefix is unknown
	Continent    string    // empty when the prefix is unknown
	DXCCID       int       // ADIF entity id, 0 when unknown
	Grid         string    // optional 4-6 char locator
}

// DedupHash returns the 32-bit dedup key for the spot using a fixed-layout,
// zero-allocation buffer. The key covers:
//   - Time truncated to the minute (Unix seconds)
//   - Frequency rounded to whole kHz
//   - DX call uppercased, fixed-width 12 bytes
//
// Two reports of the same station on the same kHz in the same minute hash
// identically regardless of which feed delivered them.
func (s *ParsedSpot) DedupHash() uint32 {
	var buf [24]byte
	t := s.Time.Truncate(time.Minute).Unix()
	binary.LittleEndian.PutUint64(buf[0:8], uint64(t))
	freq := uint32(math.Floor(s.FrequencyKHz + 0.5))
	binary.LittleEndian.PutUint32(buf[8:12], freq)
	writeFixedCall(buf[12:24], s.DXCall)
	return uint32(xxh3.Hash(buf[:]))
}

// writeFixedCall assumes call is already normalized/uppercased ASCII.
func writeFixedCall(dst []byte, call string) {
	const maxLen = 12
	n := 0
	for i := 0; i < len(call) && n < maxLen; i++ {
		dst[n] = call[i]
		n++
	}
	for n < maxLen {
		dst[n] = 0
		n++
	}
}

// String returns a human-readable representation for log lines.
func (s *ParsedSpot) String() string {
	return fmt.Sprintf("[%s] %s spotted %s on %.1f kHz (%s) - %s",
		s.Time.Format("15:04"),
		s.Spotter,
		s.DXCall,
		s.FrequencyKHz,
		s.Mode,
		s.Comment)
}
