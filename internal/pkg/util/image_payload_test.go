package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImagePayload(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	enc := base64.StdEncoding.EncodeToString(raw)

	data, err := DecodeImagePayload("data:image/png;base64," + enc)
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	data, err = DecodeImagePayload(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	data, err = DecodeImagePayload(base64.RawStdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestDecodeImagePayloadInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,notbase64",
		"%%%",
	} {
		_, err := DecodeImagePayload(in)
		assert.ErrorIs(t, err, ErrInvalidImagePayload, in)
	}

	_, err := DecodeImagePayloads([]string{base64.StdEncoding.EncodeToString([]byte("ok")), "%%%"})
	assert.Error(t, err)
}

func TestDecodeImagePayloadsSkipsEmpty(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("ok"))
	out, err := DecodeImagePayloads([]string{"", enc, "   "})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ok")}, out)

	out, err = DecodeImagePayloads([]string{""})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestValidateDTO(t *testing.T) {
	type sample struct {
		Name string `validate:"required"`
	}
	assert.Error(t, ValidateDTO(&sample{}))
	assert.NoError(t, ValidateDTO(&sample{Name: "x"}))
}
