package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixedHeaderPublish(t *testing.T) {
	// PUBLISH, DUP=1, QoS=2, RETAIN=1, remaining length 10.
	raw := []byte{byte(PUBLISH)<<4 | 0x0D, 0x0A}
	fh, err := ParseFixedHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, PUBLISH, fh.Type)
	assert.True(t, fh.DUP)
	assert.Equal(t, QoS2, fh.QoS)
	assert.True(t, fh.Retain)
	assert.Equal(t, uint32(10), fh.RemainingLength)
}

func TestParseFixedHeaderRejectsReservedType(t *testing.T) {
	_, err := ParseFixedHeader(bytes.NewReader([]byte{0x00, 0x00}))
	assert.ErrorIs(t, err, ErrInvalidReservedType)
}

func TestParseFixedHeaderRejectsBadFlags(t *testing.T) {
	// PINGREQ must carry flags 0x0.
	_, err := ParseFixedHeader(bytes.NewReader([]byte{byte(PINGREQ)<<4 | 0x01, 0x00}))
	assert.ErrorIs(t, err, ErrInvalidFlags)
}

func TestParseFixedHeaderRejectsUnsupportedQoS(t *testing.T) {
	raw := []byte{byte(PUBLISH)<<4 | 0x06, 0x00}
	_, err := ParseFixedHeader(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrUnsupportedQoS)
}

func TestFixedHeaderEncodeRoundTrip(t *testing.T) {
	fh := &FixedHeader{Type: PUBLISH, RemainingLength: 300, QoS: QoS1, Retain: true}
	fh.Flags = fh.BuildPublishFlags()

	var buf bytes.Buffer
	require.NoError(t, fh.EncodeFixedHeader(&buf))

	got, err := ParseFixedHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, PUBLISH, got.Type)
	assert.Equal(t, uint32(300), got.RemainingLength)
	assert.Equal(t, QoS1, got.QoS)
	assert.True(t, got.Retain)
	assert.False(t, got.DUP)
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "CONNECT", CONNECT.String())
	assert.Equal(t, "UNKNOWN", PacketType(99).String())
}

func TestQoSString(t *testing.T) {
	assert.Equal(t, "QoS2", QoS2.String())
	assert.Equal(t, "INVALID", QoS(9).String())
}
