package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32p(v uint32) *uint32 { return &v }
func u16p(v uint16) *uint16 { return &v }

func TestConnectPropertiesRoundTrip(t *testing.T) {
	props := ConnectProperties{
		SessionExpiryInterval: u32p(3600),
		ReceiveMaximum:        u16p(20),
		UserProperties:        []UTF8Pair{{Key: "k", Value: "v"}},
	}

	var buf bytes.Buffer
	require.NoError(t, props.encode(&buf))

	got, err := parseConnectProperties(&buf)
	require.NoError(t, err)
	require.NotNil(t, got.SessionExpiryInterval)
	assert.Equal(t, uint32(3600), *got.SessionExpiryInterval)
	require.NotNil(t, got.ReceiveMaximum)
	assert.Equal(t, uint16(20), *got.ReceiveMaximum)
	assert.Equal(t, []UTF8Pair{{Key: "k", Value: "v"}}, got.UserProperties)
}

func TestConnectPropertiesRejectsDuplicateSingleton(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVariableByteInteger(&buf, 10))
	buf.WriteByte(byte(PropSessionExpiryInterval))
	_ = writeU32(&buf, 1)
	buf.WriteByte(byte(PropSessionExpiryInterval))
	_ = writeU32(&buf, 2)

	_, err := parseConnectProperties(&buf)
	assert.ErrorIs(t, err, ErrDuplicateProperty)
}

func TestConnectPropertiesRejectsIllegalProperty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVariableByteInteger(&buf, 2))
	buf.WriteByte(byte(PropMaximumQoS)) // legal on CONNACK, not CONNECT
	buf.WriteByte(0x01)

	_, err := parseConnectProperties(&buf)
	assert.ErrorIs(t, err, ErrUnexpectedProperty)
}

func TestPublishPropertiesAllowsMultipleSubscriptionIdentifiers(t *testing.T) {
	props := PublishProperties{
		SubscriptionIdentifiers: []uint32{1, 2, 3},
	}
	var buf bytes.Buffer
	require.NoError(t, props.encode(&buf))

	got, err := parsePublishProperties(&buf)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, got.SubscriptionIdentifiers)
}

func TestSubscribePropertiesRejectsDuplicateSubscriptionIdentifier(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVariableByteInteger(&buf, 4))
	buf.WriteByte(byte(PropSubscriptionIdentifier))
	_ = WriteVariableByteInteger(&buf, 1)
	buf.WriteByte(byte(PropSubscriptionIdentifier))
	_ = WriteVariableByteInteger(&buf, 2)

	_, err := parseSubscribeProperties(&buf)
	assert.ErrorIs(t, err, ErrDuplicateProperty)
}

func TestUnsubscribePropertiesOnlyAllowsUserProperty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVariableByteInteger(&buf, 2))
	buf.WriteByte(byte(PropReasonString))
	buf.WriteByte(0x00)

	_, err := parseUnsubscribeProperties(&buf)
	assert.ErrorIs(t, err, ErrUnexpectedProperty)
}

func TestAckPropertiesIsEmpty(t *testing.T) {
	var p AckProperties
	assert.True(t, p.isEmpty())
	s := "x"
	p.ReasonString = &s
	assert.False(t, p.isEmpty())
}

func TestDisconnectPropertiesIsEmpty(t *testing.T) {
	var p DisconnectProperties
	assert.True(t, p.isEmpty())
	p.SessionExpiryInterval = u32p(1)
	assert.False(t, p.isEmpty())
}

func TestPropertyIDString(t *testing.T) {
	assert.Equal(t, "SessionExpiryInterval", PropSessionExpiryInterval.String())
	assert.Equal(t, "UNKNOWN", PropertyID(0x00).String())
}
