package cluster

import "time"

// SpotEvent is the publish envelope for one admitted spot. The ID is a
// fresh ephemeral identifier per event; nothing downstream can correlate it
// with a stored record because spots are never persisted.
type SpotEvent struct {
	ID                string    `json:"id"`
	DXCall            string    `json:"dxCall"`
	Spotter           string    `json:"spotter"`
	FrequencyKHz      float64   `json:"frequencyKHz"`
	Band              string    `json:"band,omitempty"`
	Mode              string    `json:"mode"`
	Comment           string    `json:"comment,omitempty"`
	TimestampUTC      time.Time `json:"timestampUtc"`
	SourceClusterName string    `json:"sourceClusterName"`
	Country           string    `json:"country,omitempty"`
	Continent         string    `json:"continent,omitempty"`
	DXCCID            int       `json:"dxccId,omitempty"`
	Grid              string    `json:"grid,omitempty"`
}

// StatusEvent is pushed on every state transition of every handler.
type StatusEvent struct {
	ClusterID    string `json:"clusterId"`
	Name         string `json:"name"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Publisher is the external notification transport. Implementations must
// tolerate concurrent calls; the supervisor invokes them from its dispatch
// goroutines, never from a network read path.
type Publisher interface {
	PublishSpot(ev SpotEvent) error
	PublishStatus(ev StatusEvent) error
}
