package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUTF8String(t *testing.T) {
	cases := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", []byte{}, nil},
		{"ascii", []byte("hello/world"), nil},
		{"multibyte", []byte("café"), nil},
		{"null character", []byte{'a', 0x00, 'b'}, ErrNullCharacter},
		{"invalid utf8", []byte{0xFF, 0xFE}, ErrInvalidUTF8},
		{"surrogate", []byte{0xED, 0xA0, 0x80}, ErrInvalidUTF8},
		{"noncharacter FFFE", []byte{0xEF, 0xBF, 0xBE}, ErrNonCharacterCodePoint},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUTF8String(tc.data)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestIsValidUTF8String(t *testing.T) {
	assert.True(t, IsValidUTF8String([]byte("topic/filter")))
	assert.False(t, IsValidUTF8String([]byte{'a', 0x00}))
}
