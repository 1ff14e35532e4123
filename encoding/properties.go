package encoding

import (
	"bytes"
	"io"
)

// PropertyID identifies one of the MQTT 5.0 properties. The identifier byte
// maps one-to-one to a fixed payload type (byte, u16, u32, variable-byte
// integer, UTF-8 string, binary blob, or a UTF-8 (name, value) pair for
// user properties).
type PropertyID byte

const (
	PropPayloadFormatIndicator     PropertyID = 0x01
	PropMessageExpiryInterval      PropertyID = 0x02
	PropContentType                PropertyID = 0x03
	PropResponseTopic              PropertyID = 0x08
	PropCorrelationData            PropertyID = 0x09
	PropSubscriptionIdentifier     PropertyID = 0x0B
	PropSessionExpiryInterval      PropertyID = 0x11
	PropAssignedClientIdentifier   PropertyID = 0x12
	PropServerKeepAlive            PropertyID = 0x13
	PropAuthenticationMethod       PropertyID = 0x15
	PropAuthenticationData         PropertyID = 0x16
	PropRequestProblemInformation  PropertyID = 0x17
	PropWillDelayInterval          PropertyID = 0x18
	PropRequestResponseInformation PropertyID = 0x19
	PropResponseInformation        PropertyID = 0x1A
	PropServerReference            PropertyID = 0x1C
	PropReasonString               PropertyID = 0x1F
	PropReceiveMaximum             PropertyID = 0x21
	PropTopicAliasMaximum          PropertyID = 0x22
	PropTopicAlias                 PropertyID = 0x23
	PropMaximumQoS                 PropertyID = 0x24
	PropRetainAvailable            PropertyID = 0x25
	PropUserProperty               PropertyID = 0x26
	PropMaximumPacketSize          PropertyID = 0x27
	PropWildcardSubAvailable       PropertyID = 0x28
	PropSubscriptionIDAvailable    PropertyID = 0x29
	PropSharedSubAvailable         PropertyID = 0x2A
)

// readPropertyBlock reads the variable-byte-integer property-block length
// prefix and returns a reader bounded to exactly that many bytes, plus the
// length itself. The property parsers in this file ignore the length; the
// packet parsers size a decoded block by re-encoding its properties.
func readPropertyBlock(r io.Reader) (*io.LimitedReader, uint32, error) {
	length, err := DecodeVariableByteInteger(r)
	if err != nil {
		return nil, 0, err
	}
	return &io.LimitedReader{R: r, N: int64(length)}, length, nil
}

func writePropertyBlock(w io.Writer, body []byte) error {
	if err := WriteVariableByteInteger(w, uint32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ConnectProperties holds the properties legal on a CONNECT packet.
type ConnectProperties struct {
	SessionExpiryInterval      *uint32
	ReceiveMaximum             *uint16
	MaximumPacketSize          *uint32
	TopicAliasMaximum          *uint16
	RequestResponseInformation *byte
	RequestProblemInformation  *byte
	AuthenticationMethod       *string
	AuthenticationData         []byte
	UserProperties             []UTF8Pair
}

func parseConnectProperties(r io.Reader) (ConnectProperties, error) {
	var props ConnectProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	seen := map[PropertyID]bool{}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		id := PropertyID(idByte)
		switch id {
		case PropSessionExpiryInterval:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU32(lr)
			if err != nil {
				return props, err
			}
			props.SessionExpiryInterval = &v
		case PropReceiveMaximum:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU16(lr)
			if err != nil {
				return props, err
			}
			props.ReceiveMaximum = &v
		case PropMaximumPacketSize:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU32(lr)
			if err != nil {
				return props, err
			}
			props.MaximumPacketSize = &v
		case PropTopicAliasMaximum:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU16(lr)
			if err != nil {
				return props, err
			}
			props.TopicAliasMaximum = &v
		case PropRequestResponseInformation:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.RequestResponseInformation = &v
		case PropRequestProblemInformation:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.RequestProblemInformation = &v
		case PropAuthenticationMethod:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.AuthenticationMethod = &v
		case PropAuthenticationData:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readBlob(lr)
			if err != nil {
				return props, err
			}
			props.AuthenticationData = v
		case PropUserProperty:
			p, err := readUTF8Pair(lr)
			if err != nil {
				return props, err
			}
			props.UserProperties = append(props.UserProperties, p)
		default:
			return props, ErrUnexpectedProperty
		}
	}
	return props, nil
}

func (p *ConnectProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	writeOptU32(&buf, PropSessionExpiryInterval, p.SessionExpiryInterval)
	writeOptU16(&buf, PropReceiveMaximum, p.ReceiveMaximum)
	writeOptU32(&buf, PropMaximumPacketSize, p.MaximumPacketSize)
	writeOptU16(&buf, PropTopicAliasMaximum, p.TopicAliasMaximum)
	writeOptByte(&buf, PropRequestResponseInformation, p.RequestResponseInformation)
	writeOptByte(&buf, PropRequestProblemInformation, p.RequestProblemInformation)
	writeOptString(&buf, PropAuthenticationMethod, p.AuthenticationMethod)
	if p.AuthenticationData != nil {
		buf.WriteByte(byte(PropAuthenticationData))
		_ = writeBlob(&buf, p.AuthenticationData)
	}
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

// WillProperties holds the properties on a CONNECT packet's will payload.
type WillProperties struct {
	WillDelayInterval      *uint32
	PayloadFormatIndicator *byte
	MessageExpiryInterval  *uint32
	ContentType            *string
	ResponseTopic          *string
	CorrelationData        []byte
	UserProperties         []UTF8Pair
}

func parseWillProperties(r io.Reader) (WillProperties, error) {
	var props WillProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	seen := map[PropertyID]bool{}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		id := PropertyID(idByte)
		switch id {
		case PropWillDelayInterval:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU32(lr)
			if err != nil {
				return props, err
			}
			props.WillDelayInterval = &v
		case PropPayloadFormatIndicator:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.PayloadFormatIndicator = &v
		case PropMessageExpiryInterval:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU32(lr)
			if err != nil {
				return props, err
			}
			props.MessageExpiryInterval = &v
		case PropContentType:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ContentType = &v
		case PropResponseTopic:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ResponseTopic = &v
		case PropCorrelationData:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readBlob(lr)
			if err != nil {
				return props, err
			}
			props.CorrelationData = v
		case PropUserProperty:
			p, err := readUTF8Pair(lr)
			if err != nil {
				return props, err
			}
			props.UserProperties = append(props.UserProperties, p)
		default:
			return props, ErrUnexpectedProperty
		}
	}
	return props, nil
}

func (p *WillProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	writeOptU32(&buf, PropWillDelayInterval, p.WillDelayInterval)
	writeOptByte(&buf, PropPayloadFormatIndicator, p.PayloadFormatIndicator)
	writeOptU32(&buf, PropMessageExpiryInterval, p.MessageExpiryInterval)
	writeOptString(&buf, PropContentType, p.ContentType)
	writeOptString(&buf, PropResponseTopic, p.ResponseTopic)
	if p.CorrelationData != nil {
		buf.WriteByte(byte(PropCorrelationData))
		_ = writeBlob(&buf, p.CorrelationData)
	}
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

// ConnackProperties holds the properties legal on a CONNACK packet.
type ConnackProperties struct {
	SessionExpiryInterval    *uint32
	ReceiveMaximum           *uint16
	MaximumQoS               *byte
	RetainAvailable          *byte
	MaximumPacketSize        *uint32
	AssignedClientIdentifier *string
	TopicAliasMaximum        *uint16
	ReasonString             *string
	WildcardSubAvailable     *byte
	SubscriptionIDAvailable  *byte
	SharedSubAvailable       *byte
	ServerKeepAlive          *uint16
	ResponseInformation      *string
	ServerReference          *string
	AuthenticationMethod     *string
	AuthenticationData       []byte
	UserProperties           []UTF8Pair
}

func parseConnackProperties(r io.Reader) (ConnackProperties, error) {
	var props ConnackProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	seen := map[PropertyID]bool{}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		id := PropertyID(idByte)
		switch id {
		case PropSessionExpiryInterval:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU32(lr)
			if err != nil {
				return props, err
			}
			props.SessionExpiryInterval = &v
		case PropReceiveMaximum:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU16(lr)
			if err != nil {
				return props, err
			}
			props.ReceiveMaximum = &v
		case PropMaximumQoS:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.MaximumQoS = &v
		case PropRetainAvailable:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.RetainAvailable = &v
		case PropMaximumPacketSize:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU32(lr)
			if err != nil {
				return props, err
			}
			props.MaximumPacketSize = &v
		case PropAssignedClientIdentifier:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.AssignedClientIdentifier = &v
		case PropTopicAliasMaximum:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU16(lr)
			if err != nil {
				return props, err
			}
			props.TopicAliasMaximum = &v
		case PropReasonString:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ReasonString = &v
		case PropWildcardSubAvailable:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.WildcardSubAvailable = &v
		case PropSubscriptionIDAvailable:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.SubscriptionIDAvailable = &v
		case PropSharedSubAvailable:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.SharedSubAvailable = &v
		case PropServerKeepAlive:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU16(lr)
			if err != nil {
				return props, err
			}
			props.ServerKeepAlive = &v
		case PropResponseInformation:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ResponseInformation = &v
		case PropServerReference:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ServerReference = &v
		case PropAuthenticationMethod:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.AuthenticationMethod = &v
		case PropAuthenticationData:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readBlob(lr)
			if err != nil {
				return props, err
			}
			props.AuthenticationData = v
		case PropUserProperty:
			p, err := readUTF8Pair(lr)
			if err != nil {
				return props, err
			}
			props.UserProperties = append(props.UserProperties, p)
		default:
			return props, ErrUnexpectedProperty
		}
	}
	return props, nil
}

func (p *ConnackProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	writeOptU32(&buf, PropSessionExpiryInterval, p.SessionExpiryInterval)
	writeOptU16(&buf, PropReceiveMaximum, p.ReceiveMaximum)
	writeOptByte(&buf, PropMaximumQoS, p.MaximumQoS)
	writeOptByte(&buf, PropRetainAvailable, p.RetainAvailable)
	writeOptU32(&buf, PropMaximumPacketSize, p.MaximumPacketSize)
	writeOptString(&buf, PropAssignedClientIdentifier, p.AssignedClientIdentifier)
	writeOptU16(&buf, PropTopicAliasMaximum, p.TopicAliasMaximum)
	writeOptString(&buf, PropReasonString, p.ReasonString)
	writeOptByte(&buf, PropWildcardSubAvailable, p.WildcardSubAvailable)
	writeOptByte(&buf, PropSubscriptionIDAvailable, p.SubscriptionIDAvailable)
	writeOptByte(&buf, PropSharedSubAvailable, p.SharedSubAvailable)
	writeOptU16(&buf, PropServerKeepAlive, p.ServerKeepAlive)
	writeOptString(&buf, PropResponseInformation, p.ResponseInformation)
	writeOptString(&buf, PropServerReference, p.ServerReference)
	writeOptString(&buf, PropAuthenticationMethod, p.AuthenticationMethod)
	if p.AuthenticationData != nil {
		buf.WriteByte(byte(PropAuthenticationData))
		_ = writeBlob(&buf, p.AuthenticationData)
	}
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

// PublishProperties holds the properties legal on a PUBLISH packet.
type PublishProperties struct {
	PayloadFormatIndicator  *byte
	MessageExpiryInterval   *uint32
	TopicAlias              *uint16
	ResponseTopic           *string
	CorrelationData         []byte
	ContentType             *string
	SubscriptionIdentifiers []uint32
	UserProperties          []UTF8Pair
}

func parsePublishProperties(r io.Reader) (PublishProperties, error) {
	var props PublishProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	seen := map[PropertyID]bool{}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		id := PropertyID(idByte)
		switch id {
		case PropPayloadFormatIndicator:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU8(lr)
			if err != nil {
				return props, err
			}
			props.PayloadFormatIndicator = &v
		case PropMessageExpiryInterval:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU32(lr)
			if err != nil {
				return props, err
			}
			props.MessageExpiryInterval = &v
		case PropTopicAlias:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU16(lr)
			if err != nil {
				return props, err
			}
			props.TopicAlias = &v
		case PropResponseTopic:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ResponseTopic = &v
		case PropCorrelationData:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readBlob(lr)
			if err != nil {
				return props, err
			}
			props.CorrelationData = v
		case PropContentType:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ContentType = &v
		case PropSubscriptionIdentifier:
			v, err := DecodeVariableByteInteger(lr)
			if err != nil {
				return props, err
			}
			props.SubscriptionIdentifiers = append(props.SubscriptionIdentifiers, v)
		case PropUserProperty:
			p, err := readUTF8Pair(lr)
			if err != nil {
				return props, err
			}
			props.UserProperties = append(props.UserProperties, p)
		default:
			return props, ErrUnexpectedProperty
		}
	}
	return props, nil
}

func (p *PublishProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	writeOptByte(&buf, PropPayloadFormatIndicator, p.PayloadFormatIndicator)
	writeOptU32(&buf, PropMessageExpiryInterval, p.MessageExpiryInterval)
	writeOptU16(&buf, PropTopicAlias, p.TopicAlias)
	writeOptString(&buf, PropResponseTopic, p.ResponseTopic)
	if p.CorrelationData != nil {
		buf.WriteByte(byte(PropCorrelationData))
		_ = writeBlob(&buf, p.CorrelationData)
	}
	writeOptString(&buf, PropContentType, p.ContentType)
	for _, sid := range p.SubscriptionIdentifiers {
		buf.WriteByte(byte(PropSubscriptionIdentifier))
		_ = WriteVariableByteInteger(&buf, sid)
	}
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

// AckProperties holds the properties common to PUBACK/PUBREC/PUBREL/PUBCOMP
// and SUBACK/UNSUBACK.
type AckProperties struct {
	ReasonString   *string
	UserProperties []UTF8Pair
}

func parseAckProperties(r io.Reader) (AckProperties, error) {
	var props AckProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	seen := map[PropertyID]bool{}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		id := PropertyID(idByte)
		switch id {
		case PropReasonString:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ReasonString = &v
		case PropUserProperty:
			p, err := readUTF8Pair(lr)
			if err != nil {
				return props, err
			}
			props.UserProperties = append(props.UserProperties, p)
		default:
			return props, ErrUnexpectedProperty
		}
	}
	return props, nil
}

func (p *AckProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	writeOptString(&buf, PropReasonString, p.ReasonString)
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

func (p *AckProperties) isEmpty() bool {
	return p.ReasonString == nil && len(p.UserProperties) == 0
}

// SubscribeProperties holds the properties legal on a SUBSCRIBE packet.
type SubscribeProperties struct {
	SubscriptionIdentifier *uint32
	UserProperties         []UTF8Pair
}

func parseSubscribeProperties(r io.Reader) (SubscribeProperties, error) {
	var props SubscribeProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	seen := map[PropertyID]bool{}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		id := PropertyID(idByte)
		switch id {
		case PropSubscriptionIdentifier:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := DecodeVariableByteInteger(lr)
			if err != nil {
				return props, err
			}
			props.SubscriptionIdentifier = &v
		case PropUserProperty:
			p, err := readUTF8Pair(lr)
			if err != nil {
				return props, err
			}
			props.UserProperties = append(props.UserProperties, p)
		default:
			return props, ErrUnexpectedProperty
		}
	}
	return props, nil
}

func (p *SubscribeProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	if p.SubscriptionIdentifier != nil {
		buf.WriteByte(byte(PropSubscriptionIdentifier))
		_ = WriteVariableByteInteger(&buf, *p.SubscriptionIdentifier)
	}
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

// UnsubscribeProperties holds the properties legal on an UNSUBSCRIBE packet.
type UnsubscribeProperties struct {
	UserProperties []UTF8Pair
}

func parseUnsubscribeProperties(r io.Reader) (UnsubscribeProperties, error) {
	var props UnsubscribeProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		if PropertyID(idByte) != PropUserProperty {
			return props, ErrUnexpectedProperty
		}
		p, err := readUTF8Pair(lr)
		if err != nil {
			return props, err
		}
		props.UserProperties = append(props.UserProperties, p)
	}
	return props, nil
}

func (p *UnsubscribeProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

// DisconnectProperties holds the properties legal on a DISCONNECT packet.
type DisconnectProperties struct {
	SessionExpiryInterval *uint32
	ReasonString          *string
	ServerReference       *string
	UserProperties        []UTF8Pair
}

func parseDisconnectProperties(r io.Reader) (DisconnectProperties, error) {
	var props DisconnectProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	seen := map[PropertyID]bool{}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		id := PropertyID(idByte)
		switch id {
		case PropSessionExpiryInterval:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readU32(lr)
			if err != nil {
				return props, err
			}
			props.SessionExpiryInterval = &v
		case PropReasonString:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ReasonString = &v
		case PropServerReference:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ServerReference = &v
		case PropUserProperty:
			p, err := readUTF8Pair(lr)
			if err != nil {
				return props, err
			}
			props.UserProperties = append(props.UserProperties, p)
		default:
			return props, ErrUnexpectedProperty
		}
	}
	return props, nil
}

func (p *DisconnectProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	writeOptU32(&buf, PropSessionExpiryInterval, p.SessionExpiryInterval)
	writeOptString(&buf, PropReasonString, p.ReasonString)
	writeOptString(&buf, PropServerReference, p.ServerReference)
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

func (p *DisconnectProperties) isEmpty() bool {
	return p.SessionExpiryInterval == nil && p.ReasonString == nil &&
		p.ServerReference == nil && len(p.UserProperties) == 0
}

// AuthProperties holds the properties legal on an AUTH packet.
type AuthProperties struct {
	AuthenticationMethod *string
	AuthenticationData   []byte
	ReasonString         *string
	UserProperties       []UTF8Pair
}

func parseAuthProperties(r io.Reader) (AuthProperties, error) {
	var props AuthProperties
	lr, _, err := readPropertyBlock(r)
	if err != nil {
		return props, err
	}
	seen := map[PropertyID]bool{}
	for lr.N > 0 {
		idByte, err := readU8(lr)
		if err != nil {
			return props, err
		}
		id := PropertyID(idByte)
		switch id {
		case PropAuthenticationMethod:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.AuthenticationMethod = &v
		case PropAuthenticationData:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readBlob(lr)
			if err != nil {
				return props, err
			}
			props.AuthenticationData = v
		case PropReasonString:
			if err := singleton(seen, id); err != nil {
				return props, err
			}
			v, err := readString(lr)
			if err != nil {
				return props, err
			}
			props.ReasonString = &v
		case PropUserProperty:
			p, err := readUTF8Pair(lr)
			if err != nil {
				return props, err
			}
			props.UserProperties = append(props.UserProperties, p)
		default:
			return props, ErrUnexpectedProperty
		}
	}
	return props, nil
}

func (p *AuthProperties) encode(w io.Writer) error {
	var buf bytes.Buffer
	writeOptString(&buf, PropAuthenticationMethod, p.AuthenticationMethod)
	if p.AuthenticationData != nil {
		buf.WriteByte(byte(PropAuthenticationData))
		_ = writeBlob(&buf, p.AuthenticationData)
	}
	writeOptString(&buf, PropReasonString, p.ReasonString)
	for _, up := range p.UserProperties {
		buf.WriteByte(byte(PropUserProperty))
		_ = writeUTF8Pair(&buf, up)
	}
	return writePropertyBlock(w, buf.Bytes())
}

// singleton records id as seen, failing with ErrDuplicateProperty if it was
// already present -- the "at most one" rule for non-Multiple properties.
func singleton(seen map[PropertyID]bool, id PropertyID) error {
	if seen[id] {
		return ErrDuplicateProperty
	}
	seen[id] = true
	return nil
}

func writeOptU32(w io.Writer, id PropertyID, v *uint32) {
	if v == nil {
		return
	}
	_, _ = w.Write([]byte{byte(id)})
	_ = writeU32(w, *v)
}

func writeOptU16(w io.Writer, id PropertyID, v *uint16) {
	if v == nil {
		return
	}
	_, _ = w.Write([]byte{byte(id)})
	_ = writeU16(w, *v)
}

func writeOptByte(w io.Writer, id PropertyID, v *byte) {
	if v == nil {
		return
	}
	_, _ = w.Write([]byte{byte(id), *v})
}

func writeOptString(w io.Writer, id PropertyID, v *string) {
	if v == nil {
		return
	}
	_, _ = w.Write([]byte{byte(id)})
	_ = writeString(w, *v)
}

// String returns the property identifier's name, for diagnostics.
func (id PropertyID) String() string {
	switch id {
	case PropPayloadFormatIndicator:
		return "PayloadFormatIndicator"
	case PropMessageExpiryInterval:
		return "MessageExpiryInterval"
	case PropContentType:
		return "ContentType"
	case PropResponseTopic:
		return "ResponseTopic"
	case PropCorrelationData:
		return "CorrelationData"
	case PropSubscriptionIdentifier:
		return "SubscriptionIdentifier"
	case PropSessionExpiryInterval:
		return "SessionExpiryInterval"
	case PropAssignedClientIdentifier:
		return "AssignedClientIdentifier"
	case PropServerKeepAlive:
		return "ServerKeepAlive"
	case PropAuthenticationMethod:
		return "AuthenticationMethod"
	case PropAuthenticationData:
		return "AuthenticationData"
	case PropRequestProblemInformation:
		return "RequestProblemInformation"
	case PropWillDelayInterval:
		return "WillDelayInterval"
	case PropRequestResponseInformation:
		return "RequestResponseInformation"
	case PropResponseInformation:
		return "ResponseInformation"
	case PropServerReference:
		return "ServerReference"
	case PropReasonString:
		return "ReasonString"
	case PropReceiveMaximum:
		return "ReceiveMaximum"
	case PropTopicAliasMaximum:
		return "TopicAliasMaximum"
	case PropTopicAlias:
		return "TopicAlias"
	case PropMaximumQoS:
		return "MaximumQoS"
	case PropRetainAvailable:
		return "RetainAvailable"
	case PropUserProperty:
		return "UserProperty"
	case PropMaximumPacketSize:
		return "MaximumPacketSize"
	case PropWildcardSubAvailable:
		return "WildcardSubscriptionAvailable"
	case PropSubscriptionIDAvailable:
		return "SubscriptionIdentifierAvailable"
	case PropSharedSubAvailable:
		return "SharedSubscriptionAvailable"
	default:
		return "UNKNOWN"
	}
}
