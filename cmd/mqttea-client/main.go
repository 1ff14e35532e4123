// Command mqttea-client is a minimal runnable example wiring transport,
// engine, and a log handler together: connect, subscribe to a filter
// given on the command line, and print inbound PUBLISH packets until
// interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mqttea/client/encoding"
	"github.com/mqttea/client/engine"
	"github.com/mqttea/client/internal/logging"
	"github.com/mqttea/client/transport"
	"golang.org/x/sync/errgroup"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1883", "broker address")
	clientID := flag.String("client-id", "", "MQTT client id (random if empty)")
	filter := flag.String("topic", "#", "topic filter to subscribe to")
	keepAlive := flag.Uint("keep-alive", 30, "keep-alive interval in seconds")
	flag.Parse()

	logger := logging.New(slog.LevelInfo, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := transport.DialTCP(ctx, *addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}

	opts := engine.DefaultConnectOptions()
	if *clientID != "" {
		opts.ClientID = *clientID
	}
	opts.KeepAlive = uint16(*keepAlive)

	eng, client, err := engine.New(opts, stream)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	logger.Info("connected", "addr", *addr, "client_id", opts.ClientID)

	handler := engine.HandlerFunc(func(pkt encoding.Packet) {
		switch p := pkt.(type) {
		case *encoding.PublishPacket:
			logger.Info("publish received", "topic", p.TopicName, "qos", p.FixedHeader.QoS, "bytes", len(p.Payload))
		case *encoding.PingrespPacket:
			logger.Debug("pong")
		case *encoding.DisconnectPacket:
			logger.Warn("server disconnected", "reason", p.ReasonCode)
		}
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx, handler)
	})

	g.Go(func() error {
		time.Sleep(200 * time.Millisecond) // let the handshake settle before subscribing
		sub := []encoding.Subscription{{TopicFilter: *filter, QoS: encoding.QoS1}}
		if err := client.Subscribe(sub, encoding.SubscribeProperties{}); err != nil {
			return err
		}
		logger.Info("subscribed", "filter", *filter)
		<-ctx.Done()
		return nil
	})

	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return nil
		case s := <-sig:
			logger.Info("shutting down", "signal", s.String())
			_ = client.Disconnect()
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("engine stopped", "err", err)
		os.Exit(1)
	}
}
