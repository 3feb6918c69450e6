package main

import (
	"flag"
	"log"
	"os"

	"github.com/robotalks/streambuf/pkg/link/mqtt"
	"github.com/robotalks/streambuf/pkg/link/stats"
)

var (
	mqttURL = "mqtt://localhost:1883/sbuf/"
)

func init() {
	if val := os.Getenv("SBUF_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Connect()

	mqtt.SubStats(q, func(s *stats.Stats) {
		log.Printf("%s/%s #%d %s used=%d free=%d/%d trigger=%d tx=%d rx=%d dropped=%d heap=%d sender=%q receiver=%q",
			s.Node, s.Name, s.Number, s.Mode, s.Used, s.Free, s.Capacity-1, s.TriggerLevel,
			s.TxPackets, s.RxPackets, s.RxDropped, s.HeapFree, s.WaitingToSend, s.WaitingToReceive)
	})
	<-(chan struct{})(nil)
}
