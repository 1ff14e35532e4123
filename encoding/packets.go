package encoding

import (
	"io"
)

// ReasonCode is the MQTT 5.0 one-byte acknowledgement/disconnect reason.
type ReasonCode byte

const (
	ReasonSuccess                   ReasonCode = 0x00
	ReasonNormalDisconnection       ReasonCode = 0x00
	ReasonGrantedQoS0               ReasonCode = 0x00
	ReasonGrantedQoS1               ReasonCode = 0x01
	ReasonGrantedQoS2               ReasonCode = 0x02
	ReasonDisconnectWithWillMessage ReasonCode = 0x04
	ReasonNoMatchingSubscribers     ReasonCode = 0x10
	ReasonNoSubscriptionExisted     ReasonCode = 0x11
	ReasonContinueAuthentication    ReasonCode = 0x18
	ReasonReAuthenticate            ReasonCode = 0x19

	ReasonUnspecifiedError                    ReasonCode = 0x80
	ReasonMalformedPacket                     ReasonCode = 0x81
	ReasonProtocolError                       ReasonCode = 0x82
	ReasonImplementationSpecificError         ReasonCode = 0x83
	ReasonUnsupportedProtocolVersion          ReasonCode = 0x84
	ReasonClientIdentifierNotValid            ReasonCode = 0x85
	ReasonBadUsernameOrPassword               ReasonCode = 0x86
	ReasonNotAuthorized                       ReasonCode = 0x87
	ReasonServerUnavailable                   ReasonCode = 0x88
	ReasonServerBusy                          ReasonCode = 0x89
	ReasonBanned                              ReasonCode = 0x8A
	ReasonServerShuttingDown                  ReasonCode = 0x8B
	ReasonBadAuthenticationMethod             ReasonCode = 0x8C
	ReasonKeepAliveTimeout                    ReasonCode = 0x8D
	ReasonSessionTakenOver                    ReasonCode = 0x8E
	ReasonTopicFilterInvalid                  ReasonCode = 0x8F
	ReasonTopicNameInvalid                    ReasonCode = 0x90
	ReasonPacketIdentifierInUse               ReasonCode = 0x91
	ReasonPacketIdentifierNotFound             ReasonCode = 0x92
	ReasonReceiveMaximumExceeded               ReasonCode = 0x93
	ReasonTopicAliasInvalid                    ReasonCode = 0x94
	ReasonPacketTooLarge                       ReasonCode = 0x95
	ReasonMessageRateTooHigh                   ReasonCode = 0x96
	ReasonQuotaExceeded                        ReasonCode = 0x97
	ReasonAdministrativeAction                 ReasonCode = 0x98
	ReasonPayloadFormatInvalid                 ReasonCode = 0x99
	ReasonRetainNotSupported                   ReasonCode = 0x9A
	ReasonQoSNotSupported                      ReasonCode = 0x9B
	ReasonUseAnotherServer                     ReasonCode = 0x9C
	ReasonServerMoved                          ReasonCode = 0x9D
	ReasonSharedSubscriptionsNotSupported      ReasonCode = 0x9E
	ReasonConnectionRateExceeded                ReasonCode = 0x9F
	ReasonMaximumConnectTime                    ReasonCode = 0xA0
	ReasonSubscriptionIdentifiersNotSupported   ReasonCode = 0xA1
	ReasonWildcardSubscriptionsNotSupported     ReasonCode = 0xA2
)

// String returns the reason code's name.
func (rc ReasonCode) String() string {
	switch rc {
	case ReasonSuccess:
		return "Success"
	case ReasonGrantedQoS1:
		return "GrantedQoS1"
	case ReasonGrantedQoS2:
		return "GrantedQoS2"
	case ReasonDisconnectWithWillMessage:
		return "DisconnectWithWillMessage"
	case ReasonNoMatchingSubscribers:
		return "NoMatchingSubscribers"
	case ReasonNoSubscriptionExisted:
		return "NoSubscriptionExisted"
	case ReasonContinueAuthentication:
		return "ContinueAuthentication"
	case ReasonReAuthenticate:
		return "ReAuthenticate"
	case ReasonUnspecifiedError:
		return "UnspecifiedError"
	case ReasonMalformedPacket:
		return "MalformedPacket"
	case ReasonProtocolError:
		return "ProtocolError"
	case ReasonImplementationSpecificError:
		return "ImplementationSpecificError"
	case ReasonUnsupportedProtocolVersion:
		return "UnsupportedProtocolVersion"
	case ReasonClientIdentifierNotValid:
		return "ClientIdentifierNotValid"
	case ReasonBadUsernameOrPassword:
		return "BadUsernameOrPassword"
	case ReasonNotAuthorized:
		return "NotAuthorized"
	case ReasonServerUnavailable:
		return "ServerUnavailable"
	case ReasonServerBusy:
		return "ServerBusy"
	case ReasonBanned:
		return "Banned"
	case ReasonServerShuttingDown:
		return "ServerShuttingDown"
	case ReasonBadAuthenticationMethod:
		return "BadAuthenticationMethod"
	case ReasonKeepAliveTimeout:
		return "KeepAliveTimeout"
	case ReasonSessionTakenOver:
		return "SessionTakenOver"
	case ReasonTopicFilterInvalid:
		return "TopicFilterInvalid"
	case ReasonTopicNameInvalid:
		return "TopicNameInvalid"
	case ReasonPacketIdentifierInUse:
		return "PacketIdentifierInUse"
	case ReasonPacketIdentifierNotFound:
		return "PacketIdentifierNotFound"
	case ReasonReceiveMaximumExceeded:
		return "ReceiveMaximumExceeded"
	case ReasonTopicAliasInvalid:
		return "TopicAliasInvalid"
	case ReasonPacketTooLarge:
		return "PacketTooLarge"
	case ReasonMessageRateTooHigh:
		return "MessageRateTooHigh"
	case ReasonQuotaExceeded:
		return "QuotaExceeded"
	case ReasonAdministrativeAction:
		return "AdministrativeAction"
	case ReasonPayloadFormatInvalid:
		return "PayloadFormatInvalid"
	case ReasonRetainNotSupported:
		return "RetainNotSupported"
	case ReasonQoSNotSupported:
		return "QoSNotSupported"
	case ReasonUseAnotherServer:
		return "UseAnotherServer"
	case ReasonServerMoved:
		return "ServerMoved"
	case ReasonSharedSubscriptionsNotSupported:
		return "SharedSubscriptionsNotSupported"
	case ReasonConnectionRateExceeded:
		return "ConnectionRateExceeded"
	case ReasonMaximumConnectTime:
		return "MaximumConnectTime"
	case ReasonSubscriptionIdentifiersNotSupported:
		return "SubscriptionIdentifiersNotSupported"
	case ReasonWildcardSubscriptionsNotSupported:
		return "WildcardSubscriptionsNotSupported"
	default:
		return "UNKNOWN"
	}
}

// Packet is implemented by all fifteen control packet shapes.
type Packet interface {
	Type() PacketType
	Encode(w io.Writer) error
}

// ConnectPacket is the CONNECT control packet.
type ConnectPacket struct {
	FixedHeader     FixedHeader
	ProtocolName    string
	ProtocolVersion ProtocolVersion
	CleanStart      bool
	WillFlag        bool
	WillQoS         QoS
	WillRetain      bool
	PasswordFlag    bool
	UsernameFlag    bool
	KeepAlive       uint16
	Properties      ConnectProperties
	ClientID        string
	WillProperties  WillProperties
	WillTopic       string
	WillPayload     []byte
	Username        string
	Password        []byte
}

func (p *ConnectPacket) Type() PacketType { return CONNECT }

// ConnackPacket is the CONNACK control packet.
type ConnackPacket struct {
	FixedHeader    FixedHeader
	SessionPresent bool
	ReasonCode     ReasonCode
	Properties     ConnackProperties
}

func (p *ConnackPacket) Type() PacketType { return CONNACK }

// PublishPacket is the PUBLISH control packet.
type PublishPacket struct {
	FixedHeader FixedHeader
	TopicName   string
	PacketID    uint16 // only meaningful for QoS 1/2
	Properties  PublishProperties
	Payload     []byte
}

func (p *PublishPacket) Type() PacketType { return PUBLISH }

// PubackPacket is the PUBACK control packet.
type PubackPacket struct {
	FixedHeader FixedHeader
	PacketID    uint16
	ReasonCode  ReasonCode
	Properties  AckProperties
}

func (p *PubackPacket) Type() PacketType { return PUBACK }

// PubrecPacket is the PUBREC control packet.
type PubrecPacket struct {
	FixedHeader FixedHeader
	PacketID    uint16
	ReasonCode  ReasonCode
	Properties  AckProperties
}

func (p *PubrecPacket) Type() PacketType { return PUBREC }

// PubrelPacket is the PUBREL control packet.
type PubrelPacket struct {
	FixedHeader FixedHeader
	PacketID    uint16
	ReasonCode  ReasonCode
	Properties  AckProperties
}

func (p *PubrelPacket) Type() PacketType { return PUBREL }

// PubcompPacket is the PUBCOMP control packet.
type PubcompPacket struct {
	FixedHeader FixedHeader
	PacketID    uint16
	ReasonCode  ReasonCode
	Properties  AckProperties
}

func (p *PubcompPacket) Type() PacketType { return PUBCOMP }

// Subscription is a single topic filter entry within a SUBSCRIBE packet.
type Subscription struct {
	TopicFilter       string
	QoS               QoS
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    byte
}

// SubscribePacket is the SUBSCRIBE control packet.
type SubscribePacket struct {
	FixedHeader   FixedHeader
	PacketID      uint16
	Properties    SubscribeProperties
	Subscriptions []Subscription
}

func (p *SubscribePacket) Type() PacketType { return SUBSCRIBE }

// SubackPacket is the SUBACK control packet.
type SubackPacket struct {
	FixedHeader FixedHeader
	PacketID    uint16
	Properties  AckProperties
	ReasonCodes []ReasonCode
}

func (p *SubackPacket) Type() PacketType { return SUBACK }

// UnsubscribePacket is the UNSUBSCRIBE control packet.
type UnsubscribePacket struct {
	FixedHeader  FixedHeader
	PacketID     uint16
	Properties   UnsubscribeProperties
	TopicFilters []string
}

func (p *UnsubscribePacket) Type() PacketType { return UNSUBSCRIBE }

// UnsubackPacket is the UNSUBACK control packet.
type UnsubackPacket struct {
	FixedHeader FixedHeader
	PacketID    uint16
	Properties  AckProperties
	ReasonCodes []ReasonCode
}

func (p *UnsubackPacket) Type() PacketType { return UNSUBACK }

// PingreqPacket is the PINGREQ control packet; it carries no payload.
type PingreqPacket struct{}

func (p *PingreqPacket) Type() PacketType { return PINGREQ }

// PingrespPacket is the PINGRESP control packet; it carries no payload.
type PingrespPacket struct{}

func (p *PingrespPacket) Type() PacketType { return PINGRESP }

// DisconnectPacket is the DISCONNECT control packet.
type DisconnectPacket struct {
	ReasonCode ReasonCode
	Properties DisconnectProperties
}

func (p *DisconnectPacket) Type() PacketType { return DISCONNECT }

// AuthPacket is the AUTH control packet, used for enhanced (SASL-style)
// authentication exchanges and re-authentication.
type AuthPacket struct {
	ReasonCode ReasonCode
	Properties AuthProperties
}

func (p *AuthPacket) Type() PacketType { return AUTH }

// ParseConnectPacket parses a CONNECT packet body following fh.
func ParseConnectPacket(r io.Reader, fh *FixedHeader) (*ConnectPacket, error) {
	pkt := &ConnectPacket{FixedHeader: *fh}

	protocolName, err := readString(r)
	if err != nil {
		return nil, err
	}
	pkt.ProtocolName = protocolName
	if protocolName != "MQTT" {
		return nil, ErrInvalidProtocolName
	}

	version, err := readU8(r)
	if err != nil {
		return nil, err
	}
	pkt.ProtocolVersion = ProtocolVersion(version)
	if pkt.ProtocolVersion != ProtocolVersion5 {
		return nil, ErrVersionNotSupported
	}

	flags, err := readU8(r)
	if err != nil {
		return nil, err
	}
	if flags&0x01 != 0 {
		return nil, ErrInvalidConnectFlags
	}
	pkt.CleanStart = flags&0x02 != 0
	pkt.WillFlag = flags&0x04 != 0
	pkt.WillQoS = QoS((flags & 0x18) >> 3)
	pkt.WillRetain = flags&0x20 != 0
	pkt.PasswordFlag = flags&0x40 != 0
	pkt.UsernameFlag = flags&0x80 != 0

	if !pkt.WillFlag && (pkt.WillQoS != QoS0 || pkt.WillRetain) {
		return nil, ErrWillFlagMismatch
	}
	if pkt.WillQoS > QoS2 {
		return nil, ErrInvalidWillQoS
	}

	keepAlive, err := readU16(r)
	if err != nil {
		return nil, err
	}
	pkt.KeepAlive = keepAlive

	props, err := parseConnectProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props

	clientID, err := readString(r)
	if err != nil {
		return nil, err
	}
	pkt.ClientID = clientID

	if pkt.WillFlag {
		willProps, err := parseWillProperties(r)
		if err != nil {
			return nil, err
		}
		pkt.WillProperties = willProps

		willTopic, err := readString(r)
		if err != nil {
			return nil, err
		}
		pkt.WillTopic = willTopic

		willPayload, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		pkt.WillPayload = willPayload
	}

	if pkt.UsernameFlag {
		username, err := readString(r)
		if err != nil {
			return nil, err
		}
		pkt.Username = username
	} else if pkt.PasswordFlag {
		return nil, ErrPasswordWithoutUsername
	}

	if pkt.PasswordFlag {
		password, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		pkt.Password = password
	}

	return pkt, nil
}

func (p *ConnectPacket) Encode(w io.Writer) error {
	var body byteCounter
	if err := p.encodeVariableHeaderAndPayload(&body); err != nil {
		return err
	}

	fh := &FixedHeader{Type: CONNECT, RemainingLength: uint32(body.n)}
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	return p.encodeVariableHeaderAndPayload(w)
}

func (p *ConnectPacket) encodeVariableHeaderAndPayload(w io.Writer) error {
	if err := writeString(w, p.ProtocolName); err != nil {
		return err
	}
	if err := writeU8(w, byte(p.ProtocolVersion)); err != nil {
		return err
	}

	var connectFlags byte
	if p.CleanStart {
		connectFlags |= 0x02
	}
	if p.WillFlag {
		connectFlags |= 0x04
		connectFlags |= byte(p.WillQoS) << 3
		if p.WillRetain {
			connectFlags |= 0x20
		}
	}
	if p.PasswordFlag {
		connectFlags |= 0x40
	}
	if p.UsernameFlag {
		connectFlags |= 0x80
	}
	if err := writeU8(w, connectFlags); err != nil {
		return err
	}

	if err := writeU16(w, p.KeepAlive); err != nil {
		return err
	}
	if err := p.Properties.encode(w); err != nil {
		return err
	}
	if err := writeString(w, p.ClientID); err != nil {
		return err
	}

	if p.WillFlag {
		if err := p.WillProperties.encode(w); err != nil {
			return err
		}
		if err := writeString(w, p.WillTopic); err != nil {
			return err
		}
		if err := writeBlob(w, p.WillPayload); err != nil {
			return err
		}
	}
	if p.UsernameFlag {
		if err := writeString(w, p.Username); err != nil {
			return err
		}
	}
	if p.PasswordFlag {
		if err := writeBlob(w, p.Password); err != nil {
			return err
		}
	}
	return nil
}

// ParseConnackPacket parses a CONNACK packet body following fh.
func ParseConnackPacket(r io.Reader, fh *FixedHeader) (*ConnackPacket, error) {
	pkt := &ConnackPacket{FixedHeader: *fh}

	flags, err := readU8(r)
	if err != nil {
		return nil, err
	}
	if flags&0xFE != 0 {
		return nil, ErrMalformedPacket
	}
	pkt.SessionPresent = flags&0x01 != 0

	reasonCode, err := readU8(r)
	if err != nil {
		return nil, err
	}
	pkt.ReasonCode = ReasonCode(reasonCode)

	props, err := parseConnackProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props
	return pkt, nil
}

func (p *ConnackPacket) Encode(w io.Writer) error {
	var body byteCounter
	if err := p.encodeBody(&body); err != nil {
		return err
	}
	fh := &FixedHeader{Type: CONNACK, RemainingLength: uint32(body.n)}
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	return p.encodeBody(w)
}

func (p *ConnackPacket) encodeBody(w io.Writer) error {
	var ackFlags byte
	if p.SessionPresent {
		ackFlags |= 0x01
	}
	if err := writeU8(w, ackFlags); err != nil {
		return err
	}
	if err := writeU8(w, byte(p.ReasonCode)); err != nil {
		return err
	}
	return p.Properties.encode(w)
}

// ParsePublishPacket parses a PUBLISH packet body following fh.
func ParsePublishPacket(r io.Reader, fh *FixedHeader) (*PublishPacket, error) {
	pkt := &PublishPacket{FixedHeader: *fh}

	topicName, err := readString(r)
	if err != nil {
		return nil, err
	}
	pkt.TopicName = topicName

	headerSize := sizeString(topicName)

	if fh.QoS > QoS0 {
		packetID, err := readU16(r)
		if err != nil {
			return nil, err
		}
		if packetID == 0 {
			return nil, ErrInvalidPacketID
		}
		pkt.PacketID = packetID
		headerSize += 2
	}

	propsLengthPos := headerSize
	props, err := parsePublishProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props

	var propBuf byteCounter
	_ = props.encode(&propBuf)
	headerSize = propsLengthPos + propBuf.n

	payloadLength := int(fh.RemainingLength) - headerSize
	if payloadLength > 0 {
		payload := make([]byte, payloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, ErrIncompletePacket
		}
		pkt.Payload = payload
	}
	return pkt, nil
}

func (p *PublishPacket) Encode(w io.Writer) error {
	var body byteCounter
	if err := p.encodeBody(&body); err != nil {
		return err
	}

	fh := &FixedHeader{
		Type:            PUBLISH,
		RemainingLength: uint32(body.n),
		DUP:             p.FixedHeader.DUP,
		QoS:             p.FixedHeader.QoS,
		Retain:          p.FixedHeader.Retain,
	}
	fh.Flags = fh.BuildPublishFlags()
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	return p.encodeBody(w)
}

func (p *PublishPacket) encodeBody(w io.Writer) error {
	if p.FixedHeader.QoS == QoS0 && p.PacketID != 0 {
		return ErrPublishPacketID
	}
	if p.FixedHeader.QoS > QoS0 && p.PacketID == 0 {
		return ErrPacketIdRequired
	}
	if err := writeString(w, p.TopicName); err != nil {
		return err
	}
	if p.FixedHeader.QoS > QoS0 {
		if err := writeU16(w, p.PacketID); err != nil {
			return err
		}
	}
	if err := p.Properties.encode(w); err != nil {
		return err
	}
	if len(p.Payload) > 0 {
		_, err := w.Write(p.Payload)
		return err
	}
	return nil
}

func parseAckBody(r io.Reader, fh *FixedHeader) (uint16, ReasonCode, AckProperties, error) {
	packetID, err := readU16(r)
	if err != nil {
		return 0, 0, AckProperties{}, err
	}
	if fh.RemainingLength == 2 {
		return packetID, ReasonSuccess, AckProperties{}, nil
	}
	reasonByte, err := readU8(r)
	if err != nil {
		return 0, 0, AckProperties{}, err
	}
	reasonCode := ReasonCode(reasonByte)
	if fh.RemainingLength == 3 {
		return packetID, reasonCode, AckProperties{}, nil
	}
	props, err := parseAckProperties(r)
	if err != nil {
		return 0, 0, AckProperties{}, err
	}
	return packetID, reasonCode, props, nil
}

func encodeAckBody(w io.Writer, packetID uint16, reasonCode ReasonCode, props *AckProperties) error {
	if err := writeU16(w, packetID); err != nil {
		return err
	}
	if reasonCode != ReasonSuccess || !props.isEmpty() {
		if err := writeU8(w, byte(reasonCode)); err != nil {
			return err
		}
		return props.encode(w)
	}
	return nil
}

func ackBodySize(packetID uint16, reasonCode ReasonCode, props *AckProperties) int {
	var cb byteCounter
	_ = encodeAckBody(&cb, packetID, reasonCode, props)
	return cb.n
}

func ParsePubackPacket(r io.Reader, fh *FixedHeader) (*PubackPacket, error) {
	id, rc, props, err := parseAckBody(r, fh)
	if err != nil {
		return nil, err
	}
	return &PubackPacket{FixedHeader: *fh, PacketID: id, ReasonCode: rc, Properties: props}, nil
}

func (p *PubackPacket) Encode(w io.Writer) error {
	return encodeAckPacket(w, PUBACK, 0, p.PacketID, p.ReasonCode, &p.Properties)
}

func ParsePubrecPacket(r io.Reader, fh *FixedHeader) (*PubrecPacket, error) {
	id, rc, props, err := parseAckBody(r, fh)
	if err != nil {
		return nil, err
	}
	return &PubrecPacket{FixedHeader: *fh, PacketID: id, ReasonCode: rc, Properties: props}, nil
}

func (p *PubrecPacket) Encode(w io.Writer) error {
	return encodeAckPacket(w, PUBREC, 0, p.PacketID, p.ReasonCode, &p.Properties)
}

func ParsePubrelPacket(r io.Reader, fh *FixedHeader) (*PubrelPacket, error) {
	id, rc, props, err := parseAckBody(r, fh)
	if err != nil {
		return nil, err
	}
	return &PubrelPacket{FixedHeader: *fh, PacketID: id, ReasonCode: rc, Properties: props}, nil
}

func (p *PubrelPacket) Encode(w io.Writer) error {
	return encodeAckPacket(w, PUBREL, 0x02, p.PacketID, p.ReasonCode, &p.Properties)
}

func ParsePubcompPacket(r io.Reader, fh *FixedHeader) (*PubcompPacket, error) {
	id, rc, props, err := parseAckBody(r, fh)
	if err != nil {
		return nil, err
	}
	return &PubcompPacket{FixedHeader: *fh, PacketID: id, ReasonCode: rc, Properties: props}, nil
}

func (p *PubcompPacket) Encode(w io.Writer) error {
	return encodeAckPacket(w, PUBCOMP, 0, p.PacketID, p.ReasonCode, &p.Properties)
}

func encodeAckPacket(w io.Writer, packetType PacketType, flags byte, packetID uint16, reasonCode ReasonCode, props *AckProperties) error {
	fh := &FixedHeader{Type: packetType, Flags: flags, RemainingLength: uint32(ackBodySize(packetID, reasonCode, props))}
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	return encodeAckBody(w, packetID, reasonCode, props)
}

// ParseSubscribePacket parses a SUBSCRIBE packet body following fh.
func ParseSubscribePacket(r io.Reader, fh *FixedHeader) (*SubscribePacket, error) {
	pkt := &SubscribePacket{FixedHeader: *fh}

	packetID, err := readU16(r)
	if err != nil {
		return nil, err
	}
	pkt.PacketID = packetID

	props, err := parseSubscribeProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props

	var propBuf byteCounter
	_ = props.encode(&propBuf)
	bytesRead := 2 + propBuf.n

	if bytesRead >= int(fh.RemainingLength) {
		return nil, ErrEmptySubscriptionList
	}

	for bytesRead < int(fh.RemainingLength) {
		topicFilter, err := readString(r)
		if err != nil {
			return nil, err
		}
		bytesRead += sizeString(topicFilter)

		options, err := readU8(r)
		if err != nil {
			return nil, err
		}
		bytesRead++

		if options&0xC0 != 0 {
			return nil, ErrInvalidSubscriptionOpts
		}
		qos := QoS(options & 0x03)
		if qos > QoS2 {
			return nil, ErrInvalidQoS
		}
		pkt.Subscriptions = append(pkt.Subscriptions, Subscription{
			TopicFilter:       topicFilter,
			QoS:               qos,
			NoLocal:           options&0x04 != 0,
			RetainAsPublished: options&0x08 != 0,
			RetainHandling:    (options & 0x30) >> 4,
		})
	}
	return pkt, nil
}

func (p *SubscribePacket) Encode(w io.Writer) error {
	var body byteCounter
	if err := p.encodeBody(&body); err != nil {
		return err
	}
	fh := &FixedHeader{Type: SUBSCRIBE, Flags: 0x02, RemainingLength: uint32(body.n)}
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	return p.encodeBody(w)
}

func (p *SubscribePacket) encodeBody(w io.Writer) error {
	if len(p.Subscriptions) == 0 {
		return ErrEmptySubscriptionList
	}
	if err := writeU16(w, p.PacketID); err != nil {
		return err
	}
	if err := p.Properties.encode(w); err != nil {
		return err
	}
	for _, sub := range p.Subscriptions {
		if err := writeString(w, sub.TopicFilter); err != nil {
			return err
		}
		options := byte(sub.QoS & 0x03)
		if sub.NoLocal {
			options |= 0x04
		}
		if sub.RetainAsPublished {
			options |= 0x08
		}
		options |= (sub.RetainHandling & 0x03) << 4
		if err := writeU8(w, options); err != nil {
			return err
		}
	}
	return nil
}

// ParseSubackPacket parses a SUBACK packet body following fh.
func ParseSubackPacket(r io.Reader, fh *FixedHeader) (*SubackPacket, error) {
	pkt := &SubackPacket{FixedHeader: *fh}

	packetID, err := readU16(r)
	if err != nil {
		return nil, err
	}
	pkt.PacketID = packetID

	props, err := parseAckProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props

	var propBuf byteCounter
	_ = props.encode(&propBuf)
	bytesRead := 2 + propBuf.n
	reasonCodeCount := int(fh.RemainingLength) - bytesRead
	if reasonCodeCount < 1 {
		return nil, ErrMalformedPacket
	}

	pkt.ReasonCodes = make([]ReasonCode, reasonCodeCount)
	for i := 0; i < reasonCodeCount; i++ {
		rc, err := readU8(r)
		if err != nil {
			return nil, err
		}
		pkt.ReasonCodes[i] = ReasonCode(rc)
	}
	return pkt, nil
}

func (p *SubackPacket) Encode(w io.Writer) error {
	return encodeAckPacketWithReasonCodes(w, SUBACK, 0, p.PacketID, p.ReasonCodes, &p.Properties)
}

// ParseUnsubscribePacket parses an UNSUBSCRIBE packet body following fh.
func ParseUnsubscribePacket(r io.Reader, fh *FixedHeader) (*UnsubscribePacket, error) {
	pkt := &UnsubscribePacket{FixedHeader: *fh}

	packetID, err := readU16(r)
	if err != nil {
		return nil, err
	}
	pkt.PacketID = packetID

	props, err := parseUnsubscribeProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props

	var propBuf byteCounter
	_ = props.encode(&propBuf)
	bytesRead := 2 + propBuf.n

	if bytesRead >= int(fh.RemainingLength) {
		return nil, ErrEmptyUnsubscribeList
	}

	for bytesRead < int(fh.RemainingLength) {
		topicFilter, err := readString(r)
		if err != nil {
			return nil, err
		}
		bytesRead += sizeString(topicFilter)
		pkt.TopicFilters = append(pkt.TopicFilters, topicFilter)
	}
	return pkt, nil
}

func (p *UnsubscribePacket) Encode(w io.Writer) error {
	var body byteCounter
	if err := p.encodeBody(&body); err != nil {
		return err
	}
	fh := &FixedHeader{Type: UNSUBSCRIBE, Flags: 0x02, RemainingLength: uint32(body.n)}
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	return p.encodeBody(w)
}

func (p *UnsubscribePacket) encodeBody(w io.Writer) error {
	if len(p.TopicFilters) == 0 {
		return ErrEmptyUnsubscribeList
	}
	if err := writeU16(w, p.PacketID); err != nil {
		return err
	}
	if err := p.Properties.encode(w); err != nil {
		return err
	}
	for _, topic := range p.TopicFilters {
		if err := writeString(w, topic); err != nil {
			return err
		}
	}
	return nil
}

// ParseUnsubackPacket parses an UNSUBACK packet body following fh.
func ParseUnsubackPacket(r io.Reader, fh *FixedHeader) (*UnsubackPacket, error) {
	pkt := &UnsubackPacket{FixedHeader: *fh}

	packetID, err := readU16(r)
	if err != nil {
		return nil, err
	}
	pkt.PacketID = packetID

	props, err := parseAckProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props

	var propBuf byteCounter
	_ = props.encode(&propBuf)
	bytesRead := 2 + propBuf.n
	reasonCodeCount := int(fh.RemainingLength) - bytesRead
	if reasonCodeCount < 1 {
		return nil, ErrMalformedPacket
	}

	pkt.ReasonCodes = make([]ReasonCode, reasonCodeCount)
	for i := 0; i < reasonCodeCount; i++ {
		rc, err := readU8(r)
		if err != nil {
			return nil, err
		}
		pkt.ReasonCodes[i] = ReasonCode(rc)
	}
	return pkt, nil
}

func (p *UnsubackPacket) Encode(w io.Writer) error {
	return encodeAckPacketWithReasonCodes(w, UNSUBACK, 0, p.PacketID, p.ReasonCodes, &p.Properties)
}

func encodeAckPacketWithReasonCodes(w io.Writer, packetType PacketType, flags byte, packetID uint16, reasonCodes []ReasonCode, props *AckProperties) error {
	var propBuf byteCounter
	_ = props.encode(&propBuf)
	remainingLength := uint32(2 + propBuf.n + len(reasonCodes))

	fh := &FixedHeader{Type: packetType, Flags: flags, RemainingLength: remainingLength}
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	if err := writeU16(w, packetID); err != nil {
		return err
	}
	if err := props.encode(w); err != nil {
		return err
	}
	for _, rc := range reasonCodes {
		if err := writeU8(w, byte(rc)); err != nil {
			return err
		}
	}
	return nil
}

// ParsePingreqPacket validates a zero-length PINGREQ body.
func ParsePingreqPacket(fh *FixedHeader) (*PingreqPacket, error) {
	if fh.RemainingLength != 0 {
		return nil, ErrMalformedPacket
	}
	return &PingreqPacket{}, nil
}

func (p *PingreqPacket) Encode(w io.Writer) error {
	fh := &FixedHeader{Type: PINGREQ}
	return fh.EncodeFixedHeader(w)
}

// ParsePingrespPacket validates a zero-length PINGRESP body.
func ParsePingrespPacket(fh *FixedHeader) (*PingrespPacket, error) {
	if fh.RemainingLength != 0 {
		return nil, ErrMalformedPacket
	}
	return &PingrespPacket{}, nil
}

func (p *PingrespPacket) Encode(w io.Writer) error {
	fh := &FixedHeader{Type: PINGRESP}
	return fh.EncodeFixedHeader(w)
}

// ParseDisconnectPacket parses a DISCONNECT packet body following fh.
func ParseDisconnectPacket(r io.Reader, fh *FixedHeader) (*DisconnectPacket, error) {
	pkt := &DisconnectPacket{}
	if fh.RemainingLength == 0 {
		pkt.ReasonCode = ReasonNormalDisconnection
		return pkt, nil
	}
	reasonCode, err := readU8(r)
	if err != nil {
		return nil, err
	}
	pkt.ReasonCode = ReasonCode(reasonCode)
	if fh.RemainingLength == 1 {
		return pkt, nil
	}
	props, err := parseDisconnectProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props
	return pkt, nil
}

func (p *DisconnectPacket) Encode(w io.Writer) error {
	var remainingLength uint32
	if p.ReasonCode != ReasonNormalDisconnection || !p.Properties.isEmpty() {
		var propBuf byteCounter
		_ = p.Properties.encode(&propBuf)
		remainingLength = uint32(1 + propBuf.n)
	}

	fh := &FixedHeader{Type: DISCONNECT, RemainingLength: remainingLength}
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	if remainingLength == 0 {
		return nil
	}
	if err := writeU8(w, byte(p.ReasonCode)); err != nil {
		return err
	}
	return p.Properties.encode(w)
}

// ParseAuthPacket parses an AUTH packet body following fh.
func ParseAuthPacket(r io.Reader, fh *FixedHeader) (*AuthPacket, error) {
	pkt := &AuthPacket{}
	if fh.RemainingLength == 0 {
		pkt.ReasonCode = ReasonSuccess
		return pkt, nil
	}
	reasonCode, err := readU8(r)
	if err != nil {
		return nil, err
	}
	pkt.ReasonCode = ReasonCode(reasonCode)
	if fh.RemainingLength == 1 {
		return pkt, nil
	}
	props, err := parseAuthProperties(r)
	if err != nil {
		return nil, err
	}
	pkt.Properties = props
	return pkt, nil
}

func (p *AuthPacket) Encode(w io.Writer) error {
	props := &p.Properties
	var remainingLength uint32
	if p.ReasonCode != ReasonSuccess || props.AuthenticationMethod != nil || props.AuthenticationData != nil ||
		props.ReasonString != nil || len(props.UserProperties) > 0 {
		var propBuf byteCounter
		_ = p.Properties.encode(&propBuf)
		remainingLength = uint32(1 + propBuf.n)
	}

	fh := &FixedHeader{Type: AUTH, RemainingLength: remainingLength}
	if err := fh.EncodeFixedHeader(w); err != nil {
		return err
	}
	if remainingLength == 0 {
		return nil
	}
	if err := writeU8(w, byte(p.ReasonCode)); err != nil {
		return err
	}
	return p.Properties.encode(w)
}

// ReadPacket reads one fixed header followed by its variable header and
// payload, dispatching on the header's packet type, and returns the
// concrete decoded Packet. It is the single entry point the engine uses
// to read the next frame off a transport.
func ReadPacket(r io.Reader) (Packet, error) {
	fh, err := ParseFixedHeader(r)
	if err != nil {
		return nil, err
	}
	switch fh.Type {
	case CONNECT:
		return ParseConnectPacket(r, fh)
	case CONNACK:
		return ParseConnackPacket(r, fh)
	case PUBLISH:
		return ParsePublishPacket(r, fh)
	case PUBACK:
		return ParsePubackPacket(r, fh)
	case PUBREC:
		return ParsePubrecPacket(r, fh)
	case PUBREL:
		return ParsePubrelPacket(r, fh)
	case PUBCOMP:
		return ParsePubcompPacket(r, fh)
	case SUBSCRIBE:
		return ParseSubscribePacket(r, fh)
	case SUBACK:
		return ParseSubackPacket(r, fh)
	case UNSUBSCRIBE:
		return ParseUnsubscribePacket(r, fh)
	case UNSUBACK:
		return ParseUnsubackPacket(r, fh)
	case PINGREQ:
		return ParsePingreqPacket(fh)
	case PINGRESP:
		return ParsePingrespPacket(fh)
	case DISCONNECT:
		return ParseDisconnectPacket(r, fh)
	case AUTH:
		return ParseAuthPacket(r, fh)
	default:
		return nil, ErrMalformedPacket
	}
}

// byteCounter lets an Encode method compute its own remaining-length by
// running the body-encoding logic once against a discard sink before
// running it again against the real writer -- avoids keeping two copies
// of each packet's layout (one to size, one to write).
type byteCounter struct{ n int }

func (c *byteCounter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}
