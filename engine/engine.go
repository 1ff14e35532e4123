// Package engine owns the single reader/writer of an MQTT transport: the
// connect handshake, the keep-alive timer, and the cooperative run loop
// that interleaves inbound reads with outbound channel sends.
package engine

import (
	"context"
	"time"

	"github.com/mqttea/client/encoding"
	"github.com/mqttea/client/session"
	"github.com/mqttea/client/transport"
	"golang.org/x/sync/errgroup"
)

// Handler receives the packets the run loop decides are the caller's
// concern: every inbound packet (PINGRESP and DISCONNECT included) and
// nothing it generates itself (auto-acks are written, not delivered).
type Handler interface {
	HandlePacket(pkt encoding.Packet)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(pkt encoding.Packet)

// HandlePacket implements Handler.
func (f HandlerFunc) HandlePacket(pkt encoding.Packet) { f(pkt) }

// Engine drives a single connection's transport. It owns the only reader
// and the only writer; a Client sends onto the same channel the run loop
// reads outbound packets from.
type Engine struct {
	stream    transport.Stream
	session   *session.State
	keepAlive time.Duration

	outbound <-chan encoding.Packet

	lastActivity     time.Time
	expectingPingack bool
	pingSentAt       time.Time
}

// New performs the connect handshake: it writes a CONNECT built from opts,
// reads the next packet off stream and requires a successful CONNACK,
// then returns the running engine and a Client sharing its outbound
// channel and packet-ID allocator. The returned channel's send half is
// held only by the Client; New never exposes it directly.
func New(opts ConnectOptions, stream transport.Stream) (*Engine, *Client, error) {
	connect := opts.buildConnectPacket()
	if err := connect.Encode(stream); err != nil {
		return nil, nil, err
	}

	pkt, err := encoding.ReadPacket(stream)
	if err != nil {
		return nil, nil, err
	}
	connack, ok := pkt.(*encoding.ConnackPacket)
	if !ok {
		return nil, nil, ErrConnectionError
	}
	if connack.ReasonCode != encoding.ReasonSuccess {
		return nil, nil, &ConnectionRefused{ReasonCode: connack.ReasonCode}
	}

	receiveMax := DefaultReceiveMaximum
	if connack.Properties.ReceiveMaximum != nil {
		receiveMax = int(*connack.Properties.ReceiveMaximum)
	}
	var maxPacketSize uint32
	if connack.Properties.MaximumPacketSize != nil {
		maxPacketSize = *connack.Properties.MaximumPacketSize
	}

	limits := session.Limits{
		ServerReceiveMax: uint16(receiveMax),
		MaxPacketSize:    maxPacketSize,
		ManualAck:        opts.ManualAck,
	}
	if connack.Properties.TopicAliasMaximum != nil {
		limits.TopicAliasMax = *connack.Properties.TopicAliasMaximum
	}
	sess := session.New(limits)

	channel := make(chan encoding.Packet, opts.channelCapacity())

	eng := &Engine{
		stream:       stream,
		session:      sess,
		keepAlive:    opts.keepAliveDuration(),
		outbound:     channel,
		lastActivity: time.Now(),
	}
	client := &Client{
		outbound:      channel,
		ids:           sess,
		maxPacketSize: maxPacketSize,
	}
	return eng, client, nil
}

// Run is the cooperative loop: each iteration services whichever of the
// transport read, the outbound channel, or the keep-alive timer is ready
// first. It returns when the transport errors, the server disconnects,
// the caller's own DISCONNECT is written, the outbound channel is closed
// and drained, or a keep-alive deadline is missed.
//
// The inbound read runs on its own goroutine (coordinated with the main
// loop via errgroup.WithContext, the idiom this package borrows for
// concurrent read/write/ping coordination) because encoding.ReadPacket
// blocks on the transport with no way to interrupt it except closing the
// stream; the loop goroutine stays free to service the outbound channel
// and the keep-alive timer while a read is outstanding. Once the loop
// decides to stop, Run closes the stream (when it supports Close) so the
// reader's pending read is released instead of leaking the goroutine.
func (e *Engine) Run(ctx context.Context, handler Handler) error {
	g, ctx := errgroup.WithContext(ctx)
	inbound := make(chan encoding.Packet)
	readErr := make(chan error, 1)

	g.Go(func() error {
		defer close(inbound)
		for {
			pkt, err := encoding.ReadPacket(e.stream)
			if err != nil {
				readErr <- err
				return nil
			}
			select {
			case inbound <- pkt:
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		err := e.loop(ctx, handler, inbound, readErr)
		if closer, ok := e.stream.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		return err
	})

	return g.Wait()
}

func (e *Engine) loop(ctx context.Context, handler Handler, inbound <-chan encoding.Packet, readErr <-chan error) error {
	ticker := time.NewTicker(e.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case pkt, ok := <-inbound:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if err := e.handleInbound(pkt, handler); err != nil {
				return err
			}

		case pkt, ok := <-e.outbound:
			if !ok {
				return ErrNoOutgoingPackets
			}
			if err := e.handleOutbound(pkt); err != nil {
				return err
			}

		case <-ticker.C:
			if err := e.tick(); err != nil {
				return err
			}
		}
	}
}

// tickInterval bounds how often the loop wakes to evaluate the keep-alive
// deadline. A zero keep-alive disables the timer arm entirely by ticking
// at a coarse, harmless cadence since tick() is a no-op when keepAlive==0.
func (e *Engine) tickInterval() time.Duration {
	if e.keepAlive <= 0 {
		return time.Second
	}
	interval := e.keepAlive / 4
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return interval
}

func (e *Engine) handleInbound(pkt encoding.Packet, handler Handler) error {
	switch p := pkt.(type) {
	case *encoding.PingrespPacket:
		e.expectingPingack = false
		e.lastActivity = time.Now()
		handler.HandlePacket(p)
		return nil
	case *encoding.DisconnectPacket:
		handler.HandlePacket(p)
		return ErrIncomingDisconnect
	case *encoding.PublishPacket:
		reply, err := e.session.HandleIncomingPublish(p)
		if err != nil {
			return err
		}
		handler.HandlePacket(p)
		if reply != nil {
			if err := reply.Encode(e.stream); err != nil {
				return err
			}
		}
		e.lastActivity = time.Now()
		return nil
	case *encoding.PubrelPacket:
		reply := e.session.HandleIncomingPubrel(p)
		handler.HandlePacket(p)
		if !e.session.Limits().ManualAck {
			if err := reply.Encode(e.stream); err != nil {
				return err
			}
		}
		e.lastActivity = time.Now()
		return nil
	default:
		handler.HandlePacket(pkt)
		e.lastActivity = time.Now()
		return nil
	}
}

func (e *Engine) handleOutbound(pkt encoding.Packet) error {
	if err := pkt.Encode(e.stream); err != nil {
		return err
	}
	switch p := pkt.(type) {
	case *encoding.PubackPacket:
		e.session.HandleOutgoingAck(encoding.PUBACK, p.PacketID)
	case *encoding.PubcompPacket:
		e.session.HandleOutgoingAck(encoding.PUBCOMP, p.PacketID)
	}
	e.lastActivity = time.Now()
	if _, ok := pkt.(*encoding.DisconnectPacket); ok {
		return ErrOutgoingDisconnect
	}
	return nil
}

// tick evaluates the keep-alive deadline: send a PINGREQ once the
// interval has elapsed with nothing outstanding, or fail with Timeout if
// a PINGREQ has gone unanswered for 1.5x the keep-alive interval.
func (e *Engine) tick() error {
	if e.keepAlive <= 0 {
		return nil
	}
	now := time.Now()

	if e.expectingPingack {
		deadline := e.keepAlive + e.keepAlive/2
		if now.Sub(e.pingSentAt) > deadline {
			return ErrTimeout
		}
		return nil
	}

	if now.Sub(e.lastActivity) >= e.keepAlive {
		if err := (&encoding.PingreqPacket{}).Encode(e.stream); err != nil {
			return err
		}
		e.expectingPingack = true
		e.pingSentAt = now
		e.lastActivity = now
	}
	return nil
}
