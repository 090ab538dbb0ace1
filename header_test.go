package submarines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeader(t *testing.T) {
	for tag := GameRequestType; tag < messageTypeEnd; tag++ {
		h := EncodeHeader(DefaultMagic, tag)
		require.Len(t, h, HeaderSize)
		assert.Equal(t, []byte("BS1p"), h[:MagicSize])
		assert.Equal(t, byte(tag), h[MagicSize])
	}
}

func TestDecodeHeader(t *testing.T) {
	h, err := DecodeHeader([]byte{'X', 'Y', 'Z', 'W', 200, 1, 2})
	require.NoError(t, err)

	// The header layer does not validate magic or type.
	assert.Equal(t, "XYZW", h.Magic.String())
	assert.Equal(t, MessageType(200), h.Type)
}

func TestDecodeHeader_Truncated(t *testing.T) {
	_, err := DecodeHeader([]byte{'B', 'S', '1', 'p'})
	assert.ErrorIs(t, err, ErrTruncatedHeader)

	_, err = DecodeHeader(nil)
	assert.ErrorIs(t, err, ErrTruncatedHeader)
}

func TestParseMagic(t *testing.T) {
	m, err := ParseMagic("BS1p")
	require.NoError(t, err)
	assert.Equal(t, DefaultMagic, m)

	for _, s := range []string{"", "BS1", "BS1pp"} {
		_, err = ParseMagic(s)
		assert.ErrorIs(t, err, ErrInvalidMagicLength, "%q", s)
	}
}
