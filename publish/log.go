package publish

import (
	"log"

	"spotfeed/cluster"
)

// LogPublisher writes events to the process log instead of a broker.
// Used when MQTT is disabled in the settings file.
type LogPublisher struct{}

func (LogPublisher) PublishSpot(ev cluster.SpotEvent) error {
	log.Printf("SPOT: %s de %s %.1f kHz %s %s [%s]",
		ev.DXCall, ev.Spotter, ev.FrequencyKHz, ev.Mode, ev.Comment, ev.SourceClusterName)
	return nil
}

func (LogPublisher) PublishStatus(ev cluster.StatusEvent) error {
	if ev.ErrorMessage != "" {
		log.Printf("STATUS: %s (%s): %s: %s", ev.Name, ev.ClusterID, ev.Status, ev.ErrorMessage)
	} else {
		log.Printf("STATUS: %s (%s): %s", ev.Name, ev.ClusterID, ev.Status)
	}
	return nil
}
