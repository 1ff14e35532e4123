package engine

import (
	"errors"
	"fmt"

	"github.com/mqttea/client/encoding"
)

var (
	// ErrConnectionError is returned by New when the first packet the
	// server sends after CONNECT is not a CONNACK. A transport or decode
	// error while waiting for that packet is returned as is.
	ErrConnectionError = errors.New("server did not respond with CONNACK")

	// ErrTimeout is returned by Run when a PINGREQ goes unanswered for
	// longer than 1.5x the negotiated keep-alive interval.
	ErrTimeout = errors.New("keep-alive timeout: no PINGRESP received")

	// ErrIncomingDisconnect is returned by Run when the server sends a
	// DISCONNECT packet.
	ErrIncomingDisconnect = errors.New("server sent DISCONNECT")

	// ErrOutgoingDisconnect is returned by Run once it has written a
	// DISCONNECT the caller enqueued itself (via Client.Disconnect): a
	// clean, caller-initiated shutdown rather than a fault.
	ErrOutgoingDisconnect = errors.New("client sent DISCONNECT")

	// ErrNoOutgoingPackets is returned by Run when the outbound channel
	// is closed and drained; a clean shutdown initiated by the caller.
	ErrNoOutgoingPackets = errors.New("outbound packet channel closed")

	// ErrChannelClosed is returned by the client facade's operations once
	// the engine has stopped consuming the outbound channel.
	ErrChannelClosed = errors.New("engine is no longer accepting packets")

	// ErrMaxPacketSizeExceed is returned by Publish when the encoded
	// PUBLISH would exceed the server's advertised maximum packet size.
	ErrMaxPacketSizeExceed = errors.New("encoded packet exceeds the server's maximum packet size")

	// ErrInvalidTopic is returned by Publish when the topic name fails
	// topic.ValidateTopic (empty, too long, invalid UTF-8, a null
	// character, or a '+' or '#' wildcard), and by Subscribe and
	// Unsubscribe when a filter fails topic.ValidateTopicFilter.
	ErrInvalidTopic = errors.New("invalid topic name or topic filter")
)

// ConnectionRefused is returned by New when the server replies to CONNECT
// with a CONNACK carrying a non-success reason code.
type ConnectionRefused struct {
	ReasonCode encoding.ReasonCode
}

func (e *ConnectionRefused) Error() string {
	return fmt.Sprintf("connection refused: %s", e.ReasonCode)
}
