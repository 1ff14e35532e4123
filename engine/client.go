package engine

import (
	"github.com/mqttea/client/encoding"
	"github.com/mqttea/client/topic"
)

// packetIDAllocator is the subset of *session.State the facade needs;
// narrowing it to an interface keeps client.go testable without a real
// transport or handshake.
type packetIDAllocator interface {
	NextPacketID() (uint16, error)
	ReleasePacketID(id uint16)
}

// Client is the sender-side facade returned alongside an Engine: it holds
// the send half of the outbound packet channel, the session's packet-ID
// allocator, and the server's advertised maximum packet size. Its
// operations only enqueue; the engine's run loop is the sole writer to
// the transport, so none of these block on the network.
type Client struct {
	outbound      chan<- encoding.Packet
	ids           packetIDAllocator
	maxPacketSize uint32
}

// Publish builds and enqueues a PUBLISH packet. QoS > 0 allocates a
// packet identifier from the shared allocator; QoS 0 sends none.
func (c *Client) Publish(topicName string, qos encoding.QoS, retain bool, payload []byte, props encoding.PublishProperties) error {
	if err := topic.ValidateTopic(topicName); err != nil {
		return ErrInvalidTopic
	}

	pkt := &encoding.PublishPacket{
		FixedHeader: encoding.FixedHeader{Type: encoding.PUBLISH, QoS: qos, Retain: retain},
		TopicName:   topicName,
		Properties:  props,
		Payload:     payload,
	}

	if qos > encoding.QoS0 {
		id, err := c.ids.NextPacketID()
		if err != nil {
			return err
		}
		pkt.PacketID = id
	}

	if err := c.checkSize(pkt); err != nil {
		if qos > encoding.QoS0 {
			c.ids.ReleasePacketID(pkt.PacketID)
		}
		return err
	}

	return c.enqueue(pkt)
}

// Subscribe builds and enqueues a SUBSCRIBE packet for the given filters.
func (c *Client) Subscribe(subscriptions []encoding.Subscription, props encoding.SubscribeProperties) error {
	if len(subscriptions) == 0 {
		return encoding.ErrEmptySubscriptionList
	}
	for _, sub := range subscriptions {
		if err := topic.ValidateTopicFilter(sub.TopicFilter); err != nil {
			return ErrInvalidTopic
		}
	}
	id, err := c.ids.NextPacketID()
	if err != nil {
		return err
	}
	pkt := &encoding.SubscribePacket{
		FixedHeader:   encoding.FixedHeader{Type: encoding.SUBSCRIBE},
		PacketID:      id,
		Properties:    props,
		Subscriptions: subscriptions,
	}
	if err := c.checkSize(pkt); err != nil {
		c.ids.ReleasePacketID(id)
		return err
	}
	return c.enqueue(pkt)
}

// Unsubscribe builds and enqueues an UNSUBSCRIBE packet for the given
// topic filters.
func (c *Client) Unsubscribe(topicFilters []string, props encoding.UnsubscribeProperties) error {
	if len(topicFilters) == 0 {
		return encoding.ErrEmptyUnsubscribeList
	}
	for _, filter := range topicFilters {
		if err := topic.ValidateTopicFilter(filter); err != nil {
			return ErrInvalidTopic
		}
	}
	id, err := c.ids.NextPacketID()
	if err != nil {
		return err
	}
	pkt := &encoding.UnsubscribePacket{
		FixedHeader:  encoding.FixedHeader{Type: encoding.UNSUBSCRIBE},
		PacketID:     id,
		Properties:   props,
		TopicFilters: topicFilters,
	}
	if err := c.checkSize(pkt); err != nil {
		c.ids.ReleasePacketID(id)
		return err
	}
	return c.enqueue(pkt)
}

// Disconnect enqueues a DISCONNECT with NormalDisconnection; the engine's
// run loop returns ErrOutgoingDisconnect once it writes it.
func (c *Client) Disconnect() error {
	pkt := &encoding.DisconnectPacket{ReasonCode: encoding.ReasonNormalDisconnection}
	return c.enqueue(pkt)
}

// enqueue suspends on channel send per the bounded-queue backpressure
// model (§5): a full channel blocks the caller rather than erroring. A
// closed channel instead panics on send; that case only arises once the
// engine has stopped running, so it is translated into ErrChannelClosed.
func (c *Client) enqueue(pkt encoding.Packet) (err error) {
	defer func() {
		if recover() != nil {
			err = ErrChannelClosed
		}
	}()
	c.outbound <- pkt
	return nil
}

func (c *Client) checkSize(pkt encoding.Packet) error {
	if c.maxPacketSize == 0 {
		return nil
	}
	var counter sizeCounter
	if err := pkt.Encode(&counter); err != nil {
		return err
	}
	if uint32(counter.n) > c.maxPacketSize {
		return ErrMaxPacketSizeExceed
	}
	return nil
}

// sizeCounter is a discard io.Writer that only counts bytes, used to size
// an already-built packet before deciding whether to enqueue it.
type sizeCounter struct{ n int }

func (s *sizeCounter) Write(p []byte) (int, error) {
	s.n += len(p)
	return len(p), nil
}

