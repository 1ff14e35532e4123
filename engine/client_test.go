package engine

import (
	"testing"

	"github.com/mqttea/client/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAllocator struct {
	next     uint16
	err      error
	released []uint16
}

func (a *stubAllocator) NextPacketID() (uint16, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.next++
	return a.next, nil
}

func (a *stubAllocator) ReleasePacketID(id uint16) {
	a.released = append(a.released, id)
}

func newTestClient(capacity int) (*Client, <-chan encoding.Packet, *stubAllocator) {
	ch := make(chan encoding.Packet, capacity)
	alloc := &stubAllocator{}
	return &Client{outbound: ch, ids: alloc}, ch, alloc
}

func TestPublishQoS0SendsWithoutPacketID(t *testing.T) {
	c, ch, _ := newTestClient(1)
	err := c.Publish("a/b", encoding.QoS0, false, []byte("hi"), encoding.PublishProperties{})
	require.NoError(t, err)
	pkt := <-ch
	pub := pkt.(*encoding.PublishPacket)
	assert.Equal(t, uint16(0), pub.PacketID)
}

func TestPublishQoS1AllocatesPacketID(t *testing.T) {
	c, ch, alloc := newTestClient(1)
	err := c.Publish("a/b", encoding.QoS1, false, []byte("hi"), encoding.PublishProperties{})
	require.NoError(t, err)
	pkt := <-ch
	pub := pkt.(*encoding.PublishPacket)
	assert.Equal(t, uint16(1), pub.PacketID)
	assert.Equal(t, uint16(1), alloc.next)
}

func TestPublishRejectsWildcardTopic(t *testing.T) {
	c, _, _ := newTestClient(1)
	err := c.Publish("a/+", encoding.QoS0, false, nil, encoding.PublishProperties{})
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestPublishReturnsAllocatorError(t *testing.T) {
	c, _, alloc := newTestClient(1)
	alloc.err = assert.AnError
	err := c.Publish("a/b", encoding.QoS1, false, nil, encoding.PublishProperties{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPublishRejectsOversizedPacketAndReleasesID(t *testing.T) {
	c, _, alloc := newTestClient(1)
	c.maxPacketSize = 4
	err := c.Publish("a/b", encoding.QoS1, false, []byte("a big payload that is too long"), encoding.PublishProperties{})
	assert.ErrorIs(t, err, ErrMaxPacketSizeExceed)
	assert.Equal(t, []uint16{1}, alloc.released)
}

func TestSubscribeBuildsPacketWithAllocatedID(t *testing.T) {
	c, ch, _ := newTestClient(1)
	subs := []encoding.Subscription{{TopicFilter: "a/b", QoS: encoding.QoS1}}
	require.NoError(t, c.Subscribe(subs, encoding.SubscribeProperties{}))
	pkt := (<-ch).(*encoding.SubscribePacket)
	assert.Equal(t, uint16(1), pkt.PacketID)
	assert.Equal(t, subs, pkt.Subscriptions)
}

func TestSubscribeRejectsEmptyFilterList(t *testing.T) {
	c, _, _ := newTestClient(1)
	err := c.Subscribe(nil, encoding.SubscribeProperties{})
	assert.ErrorIs(t, err, encoding.ErrEmptySubscriptionList)
}

func TestUnsubscribeBuildsPacketWithAllocatedID(t *testing.T) {
	c, ch, _ := newTestClient(1)
	require.NoError(t, c.Unsubscribe([]string{"a/b"}, encoding.UnsubscribeProperties{}))
	pkt := (<-ch).(*encoding.UnsubscribePacket)
	assert.Equal(t, uint16(1), pkt.PacketID)
	assert.Equal(t, []string{"a/b"}, pkt.TopicFilters)
}

func TestDisconnectSendsNormalDisconnection(t *testing.T) {
	c, ch, _ := newTestClient(1)
	require.NoError(t, c.Disconnect())
	pkt := (<-ch).(*encoding.DisconnectPacket)
	assert.Equal(t, encoding.ReasonNormalDisconnection, pkt.ReasonCode)
}

func TestEnqueueReturnsChannelClosedOnClosedChannel(t *testing.T) {
	writable := make(chan encoding.Packet)
	close(writable)
	c := &Client{outbound: writable, ids: &stubAllocator{}}
	err := c.Disconnect()
	assert.ErrorIs(t, err, ErrChannelClosed)
}
