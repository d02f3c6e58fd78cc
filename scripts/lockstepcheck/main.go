// Command lockstepcheck is a smoke-test client: it dials the TCP
// transport, completes a handshake, sends one application message, and
// prints every line the server sends back until the first lock tick.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:9121", "TCP address of the relay server")
	gameType := flag.String("game-type", "smoke", "game type to announce")
	maxPlayers := flag.Int("max-players", 2, "session capacity to announce")
	stepTimeMs := flag.Int("step-time-ms", 200, "lock tick period in milliseconds, 0 for stepless")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", *addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	reader := bufio.NewScanner(conn)

	readLine := func(label string) map[string]any {
		if !reader.Scan() {
			log.Fatalf("%s: read: %v", label, reader.Err())
		}
		var m map[string]any
		if err := json.Unmarshal(reader.Bytes(), &m); err != nil {
			log.Fatalf("%s: decode: %v", label, err)
		}
		fmt.Printf("%s: %s\n", label, reader.Text())
		return m
	}

	writeLine := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			log.Fatalf("encode: %v", err)
		}
		data = append(data, '\n')
		if _, err := conn.Write(data); err != nil {
			log.Fatalf("write: %v", err)
		}
	}

	readLine("welcome")

	writeLine(map[string]any{
		"gameType":   *gameType,
		"maxPlayers": *maxPlayers,
		"stepTime":   *stepTimeMs,
	})

	readLine("admission")

	writeLine(map[string]any{"msg": "hello from lockstepcheck"})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m := readLine("relay")
		if _, ok := m["lock"]; ok {
			return
		}
	}
}
