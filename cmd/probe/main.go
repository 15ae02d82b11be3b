// Command probe is a headless client: it joins a server, readies up, walks
// forward and reports what it saw.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"skirmish/internal/client"
	"skirmish/internal/proto"
	"skirmish/internal/telemetry"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1337", "reliable TCP address")
	wsURL := flag.String("ws", "", "WebSocket URL; overrides -addr when set")
	udpAddr := flag.String("udp", "127.0.0.1:1338", "datagram address; empty disables")
	duration := flag.Duration("duration", 10*time.Second, "how long to stay connected")
	inputEvery := flag.Duration("input", 50*time.Millisecond, "input period")
	chat := flag.String("chat", "", "chat line to send after joining")
	shoot := flag.Bool("shoot", false, "fire once per second while in a match")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	cfg := client.DialConfig{DatagramAddr: *udpAddr, Logger: telemetry.WrapLogger(log.Default())}
	var (
		conn *client.Conn
		err  error
	)
	if *wsURL != "" {
		conn, err = client.DialWebSocket(ctx, *wsURL, cfg)
	} else {
		conn, err = client.Dial(ctx, *addr, cfg)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer conn.Close()

	predictor := client.NewPredictor(client.Config{})
	fed := make(chan error, 1)
	go func() { fed <- conn.Feed(ctx, predictor) }()

	if err := run(ctx, conn, predictor, *inputEvery, *chat, *shoot); err != nil {
		log.Printf("probe stopped: %v", err)
	}
	cancel()
	if err := <-fed; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("connection ended: %v", err)
	}
	report(predictor.View())
}

func run(ctx context.Context, conn *client.Conn, p *client.Predictor, every time.Duration, chat string, shoot bool) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var (
		joined    bool
		lastShot  time.Time
		last      = time.Now()
		input     = client.Input{Up: true, Rotation: mgl32.QuatIdent()}
		turnEvery = 40
		steps     int
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return conn.Err()
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now

			if !joined && p.LocalID() != 0 {
				joined = true
				log.Printf("joined as player %d", p.LocalID())
				if err := conn.Ready(); err != nil {
					return err
				}
				if chat != "" {
					if err := conn.Chat(chat); err != nil {
						return err
					}
				}
			}
			if !joined {
				continue
			}

			steps++
			if steps%turnEvery == 0 {
				input.Rotation = input.Rotation.Mul(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))
			}
			p.Step(dt, input)
			if err := conn.SendInput(input); err != nil {
				return err
			}
			if conn.Datagrams() != nil {
				if err := conn.SendDatagram(proto.Datagram{Rotation: input.Rotation}); err != nil {
					log.Printf("datagram: %v", err)
				}
			}
			if shoot && p.View().State == proto.StateInProgress && now.Sub(lastShot) >= time.Second {
				lastShot = now
				if err := conn.Shoot(); err != nil {
					return err
				}
			}
		}
	}
}

func report(view client.View) {
	log.Printf("state=%s winner=%d players=%d projectiles=%d", view.State, view.Winner, len(view.Players), len(view.Projectiles))
	for _, e := range view.Players {
		marker := ""
		if e.Local {
			marker = " (local)"
		}
		log.Printf("player %d%s pos=%.2f,%.2f,%.2f health=%d kills=%d deaths=%d", e.ID, marker,
			e.Visual.X(), e.Visual.Y(), e.Visual.Z(), e.Health, e.Kills, e.Deaths)
	}
	for _, line := range view.Chat {
		log.Printf("chat %d: %s", line.Sender, line.Text)
	}
}
