package main

import (
	"flag"
	"log"
	"os"
	"reflect"

	"github.com/robotalks/meshota/pkg/mesh/mqtt"
	"github.com/robotalks/meshota/pkg/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/meshota/"
)

func init() {
	if val := os.Getenv("MESHOTA_MESH_URL"); val != "" {
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
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub(mqtt.AllTopics, mqtt.Handler(func(topic string, payload []byte) {
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			log.Printf("%s: bad packet: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			log.Printf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		log.Printf("%s: %d -> %d hops=%d [%s] %s", topic,
			typed.Source, typed.Destination, typed.HopCount,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
			msg.(msgs.SerializableMessage).Serializable().String())
	}))
	<-(chan struct{})(nil)
}
