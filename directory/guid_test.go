package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Directory byte layout of 01020304-0506-0708-090a-0b0c0d0e0f10: the
// first three groups are stored little-endian.
var sampleGUIDBytes = []byte{
	0x04, 0x03, 0x02, 0x01,
	0x06, 0x05,
	0x08, 0x07,
	0x09, 0x0a,
	0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
}

func TestDecodeGUID(t *testing.T) {
	guid, err := DecodeGUID(sampleGUIDBytes)
	require.NoError(t, err)
	assert.Equal(t, "01020304-0506-0708-090a-0b0c0d0e0f10", guid)
}

func TestDecodeGUIDWrongLength(t *testing.T) {
	_, err := DecodeGUID([]byte{0x01, 0x02})
	assert.Error(t, err)

	_, err = DecodeGUID(nil)
	assert.Error(t, err)
}

func TestGUIDText(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		expected string
	}{
		{"binary value", sampleGUIDBytes, "01020304-0506-0708-090a-0b0c0d0e0f10"},
		{
			"textual value passes through",
			[]byte("8b8d58b9-ae3b-4437-a828-c972b4f3e50b"),
			"8b8d58b9-ae3b-4437-a828-c972b4f3e50b",
		},
		{"malformed value", []byte("not a guid"), ""},
		{"empty value", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GUIDText(tt.raw))
		})
	}
}
