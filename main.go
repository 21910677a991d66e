package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"spotfeed/cluster"
	"spotfeed/config"
	"spotfeed/cty"
	"spotfeed/publish"
)

const Version = "1.0.0"

const statsInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "settings.yaml", "path to the settings file")
	ctyPath := flag.String("cty", "cty.plist", "path to the country prefix database")
	debug := flag.Bool("debug", false, "log lines that match neither spot format")
	flag.Parse()

	log.Printf("spotfeed v%s starting...", Version)

	prefixes, err := cty.Load(*ctyPath)
	if err != nil {
		// Spots still flow without country resolution.
		log.Printf("Warning: failed to load CTY database: %v", err)
	} else {
		log.Printf("Loaded CTY database from %s (%d prefixes)", *ctyPath, prefixes.Size())
	}

	store := config.NewStore(*configPath)
	settings, err := store.Load()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	var pub cluster.Publisher = publish.LogPublisher{}
	var mqttPub *publish.MQTTPublisher
	if settings.MQTT.Enabled {
		mqttPub = publish.NewMQTTPublisher(settings.MQTT)
		if err := mqttPub.Connect(); err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		pub = mqttPub
	} else {
		log.Printf("MQTT disabled, publishing spots to the log")
	}

	sup := cluster.NewSupervisor(cluster.SupervisorConfig{
		Store:         store,
		Prefixes:      prefixes,
		Publisher:     pub,
		DebugUnparsed: *debug,
	})
	if err := sup.Start(); err != nil {
		log.Fatalf("Failed to start cluster supervisor: %v", err)
	}

	statsDone := make(chan struct{})
	go statsLoop(sup, statsDone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %s, shutting down...", sig)

	close(statsDone)
	sup.Shutdown()
	if mqttPub != nil {
		mqttPub.Close()
	}
	log.Println("Shutdown complete")
}

// statsLoop logs throughput counters periodically so long-running headless
// deployments leave a trace of what they did.
func statsLoop(sup *cluster.Supervisor, done chan struct{}) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			published, duplicates, cacheSize := sup.Stats()
			log.Printf("Stats: %s spots published, %s duplicates suppressed, %s dedup entries",
				humanize.Comma(int64(published)),
				humanize.Comma(int64(duplicates)),
				humanize.Comma(int64(cacheSize)))
			counters := sup.Counters()
			for _, st := range sup.Statuses() {
				line := ""
				for _, c := range counters {
					if c.ID == st.ID {
						line = " " + humanize.Comma(int64(c.Lines)) + " lines, " +
							humanize.Comma(int64(c.Parsed)) + " parsed"
						break
					}
				}
				log.Printf("Stats: cluster %s (%s): %s%s", st.Name, st.ID, st.Status, line)
			}
		}
	}
}
