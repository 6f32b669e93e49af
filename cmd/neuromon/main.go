package main

import (
	"flag"
	"log"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/atspaeth/Neurobot/pkg/telemetry"
)

//go-build: CGO_ENABLED=0

var (
	mqttURL = "mqtt://localhost:1883/neurobot/"
)

func init() {
	if val := os.Getenv("NEUROBOT_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, prefix, err := telemetry.ClientOptionsFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	topic := prefix + "#"
	token := client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		log.Printf("%s: %s", msg.Topic(), string(msg.Payload()))
	})
	if token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	log.Printf("Monitoring %s", topic)
	<-(chan struct{})(nil)
}
