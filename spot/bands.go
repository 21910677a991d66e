package spot

// BandInfo describes an amateur radio band by name and frequency range in kHz.
type BandInfo struct {
	Name string
	Min  float64
	Max  float64
}

var bandTable = []BandInfo{
	{Name: "2200m", Min: 135.7, Max: 137.8},
	{Name: "630m", Min: 472, Max: 479},
	{Name: "160m", Min: 1800, Max: 2000},
	{Name: "80m", Min: 3500, Max: 4000},
	{Name: "60m", Min: 5330, Max: 5405},
	{Name: "40m", Min: 7000, Max: 7300},
	{Name: "30m", Min: 10100, Max: 10150},
	{Name: "20m", Min: 14000, Max: 14350},
	{Name: "17m", Min: 18068, Max: 18168},
	{Name: "15m", Min: 21000, Max: 21450},
	{Name: "12m", Min: 24890, Max: 24990},
	{Name: "10m", Min: 28000, Max: 29700},
	{Name: "6m", Min: 50000, Max: 54000},
	{Name: "2m", Min: 144000, Max: 148000},
	{Name: "70cm", Min: 420000, Max: 450000},
}

// FreqToBand converts a frequency in kHz to a band string.
func FreqToBand(freq float64) string {
	for _, band := range bandTable {
		if freq >= band.Min && freq <= band.Max {
			return band.Name
		}
	}
	return "???"
}

// modeSegment maps a band's frequency range to CW at or below the split and
// SSB above it. A segment with CWEnd equal to Upper is an all-CW allocation.
type modeSegment struct {
	Lower float64
	CWEnd float64
	Upper float64
}

// The split points follow the common band-plan boundaries; 20m's
// 14000-14150/14150-14350 division is the reference case.
var modeSegments = []modeSegment{
	{Lower: 1800, CWEnd: 1838, Upper: 2000},    // 160m
	{Lower: 3500, CWEnd: 3580, Upper: 4000},    // 80m
	{Lower: 7000, CWEnd: 7040, Upper: 7300},    // 40m
	{Lower: 10100, CWEnd: 10150, Upper: 10150}, // 30m, no phone
	{Lower: 14000, CWEnd: 14150, Upper: 14350}, // 20m
	{Lower: 18068, CWEnd: 18110, Upper: 18168}, // 17m
	{Lower: 21000, CWEnd: 21200, Upper: 21450}, // 15m
	{Lower: 24890, CWEnd: 24930, Upper: 24990}, // 12m
	{Lower: 28000, CWEnd: 28300, Upper: 29700}, // 10m
	{Lower: 50000, CWEnd: 50100, Upper: 54000}, // 6m
}

// InferModeFromFreq guesses the operating mode from the frequency alone.
// Frequencies outside all known segments default to SSB.
func InferModeFromFreq(freqKHz float64) string {
	for _, seg := range modeSegments {
		if freqKHz < seg.Lower || freqKHz > seg.Upper {
			continue
		}
		if freqKHz <= seg.CWEnd {
			return "CW"
		}
		return "SSB"
	}
	return "SSB"
}
