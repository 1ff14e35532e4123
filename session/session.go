// Package session tracks the negotiated per-connection limits and the
// inbound/outbound packet-identifier bookkeeping a connected client needs
// between a successful CONNECT/CONNACK exchange and the next DISCONNECT.
package session

import (
	"sync"

	"github.com/mqttea/client/encoding"
	"github.com/mqttea/client/idalloc"
)

// Limits holds the values negotiated during CONNECT/CONNACK that govern
// how the session behaves afterward.
type Limits struct {
	// ServerReceiveMax is the broker's advertised Receive Maximum: the
	// most QoS 1/2 publishes this client may have outstanding at once.
	// Zero means "use the protocol default" (65535).
	ServerReceiveMax uint16

	// MaxPacketSize is the broker's advertised Maximum Packet Size, or
	// zero for "no limit".
	MaxPacketSize uint32

	// TopicAliasMax is the broker's advertised Topic Alias Maximum.
	// Tracked for callers that want to use aliasing; this package does
	// not perform alias substitution itself.
	TopicAliasMax uint16

	// ManualAck, when true, suppresses automatic PUBACK/PUBREC/PUBCOMP
	// generation: HandleIncomingPublish returns a nil reply and the
	// caller is responsible for acking QoS 1/2 deliveries itself.
	ManualAck bool
}

// DefaultLimits returns the protocol defaults to use before a CONNACK has
// been received.
func DefaultLimits() Limits {
	return Limits{ServerReceiveMax: 65535}
}

// State is the per-connection session state: the outgoing packet-id
// allocator plus the set of QoS 2 inbound packet IDs awaiting PUBREL. It is safe for concurrent
// use by the engine's read and write goroutines.
type State struct {
	mu sync.Mutex

	limits Limits
	ids    *idalloc.Manager

	// qos2Received tracks packet IDs of QoS 2 PUBLISH packets that have
	// been acknowledged with PUBREC but not yet released by the matching
	// PUBREL. It is not consulted when a PUBLISH arrives: a retransmitted
	// PUBLISH is acked again and delivered to the caller again.
	qos2Received map[uint16]struct{}
}

// New constructs session state bound to the given negotiated limits.
func New(limits Limits) *State {
	maxOutstanding := limits.ServerReceiveMax
	if maxOutstanding == 0 {
		maxOutstanding = 65535
	}
	return &State{
		limits:       limits,
		ids:          idalloc.NewManager(maxOutstanding),
		qos2Received: make(map[uint16]struct{}),
	}
}

// Limits returns the negotiated limits this state was constructed with.
func (s *State) Limits() Limits { return s.limits }

// NextPacketID allocates the packet identifier for the next outgoing
// QoS 1/2 PUBLISH, SUBSCRIBE, or UNSUBSCRIBE.
func (s *State) NextPacketID() (uint16, error) {
	return s.ids.Allocate()
}

// ReleasePacketID returns an outgoing packet identifier to the free pool.
func (s *State) ReleasePacketID(id uint16) {
	s.ids.Release(id)
}

// HandleIncomingPublish applies the inbound QoS dispatch for a decoded
// PUBLISH: QoS 0 needs no reply, QoS 1 replies with PUBACK, and QoS 2
// records the packet ID in the pending-PUBREL set and replies with PUBREC
// (a retransmitted QoS 2 PUBLISH gets another PUBREC; it is not
// deduplicated). When ManualAck is set, no reply is generated and the
// caller must ack the delivery itself.
func (s *State) HandleIncomingPublish(pkt *encoding.PublishPacket) (encoding.Packet, error) {
	if s.limits.ManualAck {
		return nil, nil
	}

	switch pkt.FixedHeader.QoS {
	case encoding.QoS0:
		return nil, nil
	case encoding.QoS1:
		return &encoding.PubackPacket{PacketID: pkt.PacketID, ReasonCode: encoding.ReasonSuccess}, nil
	case encoding.QoS2:
		s.mu.Lock()
		s.qos2Received[pkt.PacketID] = struct{}{}
		s.mu.Unlock()
		return &encoding.PubrecPacket{PacketID: pkt.PacketID, ReasonCode: encoding.ReasonSuccess}, nil
	default:
		return nil, ErrInvalidQoS
	}
}

// HandleIncomingPubrel completes the QoS 2 inbound exchange: it clears the
// pending-PUBREL marker and returns the PUBCOMP reply.
func (s *State) HandleIncomingPubrel(pkt *encoding.PubrelPacket) encoding.Packet {
	s.mu.Lock()
	delete(s.qos2Received, pkt.PacketID)
	s.mu.Unlock()
	return &encoding.PubcompPacket{PacketID: pkt.PacketID, ReasonCode: encoding.ReasonSuccess}
}

// HandleOutgoingAck is the outbound bookkeeping hook: for a PUBACK or
// PUBCOMP it releases packetID; other packet types are ignored. The
// engine calls it after writing a packet to the transport, so it runs for
// acks this client sends, not for acks it receives.
func (s *State) HandleOutgoingAck(packetType encoding.PacketType, packetID uint16) {
	switch packetType {
	case encoding.PUBACK, encoding.PUBCOMP:
		s.ReleasePacketID(packetID)
	}
}
