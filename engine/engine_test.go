package engine

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/mqttea/client/encoding"
	"github.com/mqttea/client/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConnack(t *testing.T, w interface{ Write([]byte) (int, error) }, reasonCode encoding.ReasonCode) {
	t.Helper()
	pkt := &encoding.ConnackPacket{ReasonCode: reasonCode}
	var buf bytes.Buffer
	require.NoError(t, pkt.Encode(&buf))
	_, err := w.Write(buf.Bytes())
	require.NoError(t, err)
}

func TestNewPerformsHandshakeAndNegotiatesLimits(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		fh, err := encoding.ParseFixedHeader(server)
		require.NoError(t, err)
		require.Equal(t, encoding.CONNECT, fh.Type)
		_, err = encoding.ParseConnectPacket(server, fh)
		require.NoError(t, err)

		receiveMax := uint16(5)
		pkt := &encoding.ConnackPacket{
			ReasonCode: encoding.ReasonSuccess,
			Properties: encoding.ConnackProperties{ReceiveMaximum: &receiveMax},
		}
		require.NoError(t, pkt.Encode(server))
	}()

	opts := DefaultConnectOptions()
	opts.ClientID = "uniqueId"
	eng, cli, err := New(opts, client)
	require.NoError(t, err)
	require.NotNil(t, eng)
	require.NotNil(t, cli)
	assert.Equal(t, uint16(5), eng.session.Limits().ServerReceiveMax)
}

func TestNewReturnsConnectionRefused(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		fh, err := encoding.ParseFixedHeader(server)
		require.NoError(t, err)
		_, err = encoding.ParseConnectPacket(server, fh)
		require.NoError(t, err)
		writeConnack(t, server, encoding.ReasonCode(0x87)) // NotAuthorized
	}()

	_, _, err := New(DefaultConnectOptions(), client)
	require.Error(t, err)
	var refused *ConnectionRefused
	require.ErrorAs(t, err, &refused)
	assert.Equal(t, encoding.ReasonCode(0x87), refused.ReasonCode)
}

func TestNewReturnsConnectionErrorOnWrongPacketType(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		fh, err := encoding.ParseFixedHeader(server)
		require.NoError(t, err)
		_, err = encoding.ParseConnectPacket(server, fh)
		require.NoError(t, err)
		pkt := &encoding.PingrespPacket{}
		require.NoError(t, pkt.Encode(server))
	}()

	_, _, err := New(DefaultConnectOptions(), client)
	assert.ErrorIs(t, err, ErrConnectionError)
}

type recordingHandler struct {
	received []encoding.Packet
}

func (h *recordingHandler) HandlePacket(pkt encoding.Packet) {
	h.received = append(h.received, pkt)
}

func newTestEngine(stream net.Conn, keepAlive time.Duration) (*Engine, chan encoding.Packet) {
	outbound := make(chan encoding.Packet, 10)
	eng := &Engine{
		stream:       stream,
		session:      session.New(session.DefaultLimits()),
		keepAlive:    keepAlive,
		outbound:     outbound,
		lastActivity: time.Now(),
	}
	return eng, outbound
}

func TestRunAutoAcksQoS1PublishAndDeliversToHandler(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	eng, _ := newTestEngine(client, 0)
	handler := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx, handler) }()

	pub := &encoding.PublishPacket{
		FixedHeader: encoding.FixedHeader{Type: encoding.PUBLISH, QoS: encoding.QoS1},
		TopicName:   "a/b",
		PacketID:    7,
	}
	require.NoError(t, pub.Encode(server))

	ack, err := encoding.ReadPacket(server)
	require.NoError(t, err)
	puback, ok := ack.(*encoding.PubackPacket)
	require.True(t, ok)
	assert.Equal(t, uint16(7), puback.PacketID)

	cancel()
	<-done
	require.Len(t, handler.received, 1)
	_, ok = handler.received[0].(*encoding.PublishPacket)
	assert.True(t, ok)
}

func TestRunWritesClientEnqueuedPackets(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	eng, outbound := newTestEngine(client, 0)
	handler := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx, handler) }()

	outbound <- &encoding.PingreqPacket{}

	pkt, err := encoding.ReadPacket(server)
	require.NoError(t, err)
	_, ok := pkt.(*encoding.PingreqPacket)
	assert.True(t, ok)
}

func TestRunReturnsOutgoingDisconnectWhenClientDisconnects(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	eng, outbound := newTestEngine(client, 0)
	handler := &recordingHandler{}

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background(), handler) }()

	go func() {
		_, _ = encoding.ReadPacket(server)
	}()

	outbound <- &encoding.DisconnectPacket{ReasonCode: encoding.ReasonNormalDisconnection}

	err := <-done
	assert.ErrorIs(t, err, ErrOutgoingDisconnect)
}

func TestRunReturnsIncomingDisconnectWhenServerDisconnects(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	eng, _ := newTestEngine(client, 0)
	handler := &recordingHandler{}

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background(), handler) }()

	pkt := &encoding.DisconnectPacket{ReasonCode: encoding.ReasonNormalDisconnection}
	require.NoError(t, pkt.Encode(server))

	err := <-done
	assert.ErrorIs(t, err, ErrIncomingDisconnect)
	require.Len(t, handler.received, 1)
}

func TestKeepAliveSendsPingAndTimesOutWithoutPingresp(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	eng, _ := newTestEngine(client, 40*time.Millisecond)
	handler := &recordingHandler{}

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background(), handler) }()

	pkt, err := encoding.ReadPacket(server)
	require.NoError(t, err)
	_, ok := pkt.(*encoding.PingreqPacket)
	require.True(t, ok)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not time out after missed PINGRESP")
	}
}

func TestKeepAliveResetsOnPingresp(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	eng, _ := newTestEngine(client, 40*time.Millisecond)
	handler := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx, handler) }()

	pkt, err := encoding.ReadPacket(server)
	require.NoError(t, err)
	_, ok := pkt.(*encoding.PingreqPacket)
	require.True(t, ok)

	pong := &encoding.PingrespPacket{}
	require.NoError(t, pong.Encode(server))

	// With the outstanding ping cleared, the next keep-alive interval
	// produces a fresh PINGREQ rather than a timeout.
	pkt, err = encoding.ReadPacket(server)
	require.NoError(t, err)
	_, ok = pkt.(*encoding.PingreqPacket)
	assert.True(t, ok)

	cancel()
	<-done
}
