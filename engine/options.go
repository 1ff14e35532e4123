package engine

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/mqttea/client/encoding"
)

// Will describes a last-will message the server publishes on the client's
// behalf if the connection drops without a clean DISCONNECT.
type Will struct {
	Topic   string
	Payload []byte
	QoS     encoding.QoS
	Retain  bool

	DelayInterval   uint32
	PayloadFormat   *byte
	MessageExpiry   *uint32
	ContentType     string
	ResponseTopic   string
	CorrelationData []byte
	UserProperties  []encoding.UTF8Pair
}

// ConnectOptions is the client's connect-time configuration, consumed
// once by New to build the CONNECT packet and the session state that
// follows it.
type ConnectOptions struct {
	ClientID   string
	Username   string
	Password   []byte
	CleanStart bool
	KeepAlive  uint16

	SessionExpiryInterval uint32
	ReceiveMaximum        uint16
	MaxPacketSize         uint32
	TopicAliasMaximum     uint16

	RequestResponseInformation bool
	RequestProblemInformation  bool

	AuthenticationMethod string
	AuthenticationData   []byte

	UserProperties []encoding.UTF8Pair

	Will *Will

	// ManualAck suppresses the session's automatic PUBACK/PUBREC/PUBCOMP
	// generation for inbound QoS 1/2 PUBLISH packets.
	ManualAck bool

	// ChannelCapacity sizes the bounded outbound packet channel. Zero
	// falls back to DefaultChannelCapacity.
	ChannelCapacity int
}

// DefaultChannelCapacity is the outbound channel size New uses when
// ConnectOptions.ChannelCapacity is zero.
const DefaultChannelCapacity = 100

// DefaultReceiveMaximum is the packet-identifier allocator capacity New
// assumes when a CONNACK omits the Receive Maximum property.
const DefaultReceiveMaximum = 100

// DefaultConnectOptions returns a ConnectOptions with a random client ID,
// clean-start semantics, and no keep-alive.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		ClientID:       randomClientID(),
		CleanStart:     true,
		ReceiveMaximum: 65535,
	}
}

func randomClientID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "mqttea-client"
	}
	return fmt.Sprintf("mqttea-%x", buf)
}

func (o *ConnectOptions) channelCapacity() int {
	if o.ChannelCapacity > 0 {
		return o.ChannelCapacity
	}
	return DefaultChannelCapacity
}

func (o *ConnectOptions) keepAliveDuration() time.Duration {
	return time.Duration(o.KeepAlive) * time.Second
}

// buildConnectPacket renders the negotiated options into a CONNECT packet.
func (o *ConnectOptions) buildConnectPacket() *encoding.ConnectPacket {
	pkt := &encoding.ConnectPacket{
		FixedHeader:     encoding.FixedHeader{Type: encoding.CONNECT},
		ProtocolName:    "MQTT",
		ProtocolVersion: encoding.ProtocolVersion5,
		CleanStart:      o.CleanStart,
		KeepAlive:       o.KeepAlive,
		ClientID:        o.ClientID,
		Properties: encoding.ConnectProperties{
			UserProperties: o.UserProperties,
		},
	}

	if o.SessionExpiryInterval != 0 {
		pkt.Properties.SessionExpiryInterval = &o.SessionExpiryInterval
	}
	if o.ReceiveMaximum != 0 {
		pkt.Properties.ReceiveMaximum = &o.ReceiveMaximum
	}
	if o.MaxPacketSize != 0 {
		pkt.Properties.MaximumPacketSize = &o.MaxPacketSize
	}
	if o.TopicAliasMaximum != 0 {
		pkt.Properties.TopicAliasMaximum = &o.TopicAliasMaximum
	}
	if o.RequestResponseInformation {
		v := byte(1)
		pkt.Properties.RequestResponseInformation = &v
	}
	if o.RequestProblemInformation {
		v := byte(1)
		pkt.Properties.RequestProblemInformation = &v
	}
	if o.AuthenticationMethod != "" {
		pkt.Properties.AuthenticationMethod = &o.AuthenticationMethod
		pkt.Properties.AuthenticationData = o.AuthenticationData
	}

	if o.Username != "" {
		pkt.UsernameFlag = true
		pkt.Username = o.Username
	}
	if o.Password != nil {
		pkt.PasswordFlag = true
		pkt.Password = o.Password
	}

	if o.Will != nil {
		w := o.Will
		pkt.WillFlag = true
		pkt.WillQoS = w.QoS
		pkt.WillRetain = w.Retain
		pkt.WillTopic = w.Topic
		pkt.WillPayload = w.Payload
		pkt.WillProperties = encoding.WillProperties{
			UserProperties: w.UserProperties,
		}
		if w.DelayInterval != 0 {
			pkt.WillProperties.WillDelayInterval = &w.DelayInterval
		}
		pkt.WillProperties.PayloadFormatIndicator = w.PayloadFormat
		pkt.WillProperties.MessageExpiryInterval = w.MessageExpiry
		if w.ContentType != "" {
			pkt.WillProperties.ContentType = &w.ContentType
		}
		if w.ResponseTopic != "" {
			pkt.WillProperties.ResponseTopic = &w.ResponseTopic
		}
		pkt.WillProperties.CorrelationData = w.CorrelationData
	}

	return pkt
}
