package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"
)

type reading struct {
	SensorID  string  `json:"sensor_id"`
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run tools/sensorsim.go <gateway-addr> [sensors] [interval]")
		fmt.Println("Example: go run tools/sensorsim.go localhost:9000 5 2s")
		os.Exit(1)
	}

	addr := os.Args[1]
	sensors := 3
	interval := 2 * time.Second

	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &sensors)
	}
	if len(os.Args) > 3 {
		d, err := time.ParseDuration(os.Args[3])
		if err == nil {
			interval = d
		}
	}

	fmt.Printf("Sensor Simulator Configuration:\n")
	fmt.Printf("  Gateway: %s\n", addr)
	fmt.Printf("  Sensors: %d\n", sensors)
	fmt.Printf("  Interval: %v\n\n", interval)

	var wg sync.WaitGroup
	for i := 1; i <= sensors; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sensorLoop(fmt.Sprintf("sensor%d", id), addr, interval)
		}(i)
	}
	wg.Wait()
}

// sensorLoop keeps one simulated sensor connected, emitting a temperature
// reading every interval and reconnecting with the same interval as backoff
// when the gateway is unreachable (e.g. while the drone is returning).
func sensorLoop(sensorID, addr string, interval time.Duration) {
	for {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			fmt.Printf("[%s] gateway unreachable (%v), retrying in %v\n", sensorID, err, interval)
			time.Sleep(interval)
			continue
		}
		fmt.Printf("[%s] connected to %s\n", sensorID, addr)

		for {
			r := reading{
				SensorID:  sensorID,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Value:     15.0 + rand.Float64()*15.0, // 15-30 °C
				Unit:      "celsius",
			}
			data, _ := json.Marshal(r)
			data = append(data, '\n')

			if _, err := conn.Write(data); err != nil {
				fmt.Printf("[%s] connection lost (%v), reconnecting\n", sensorID, err)
				conn.Close()
				break
			}
			time.Sleep(interval)
		}
	}
}
