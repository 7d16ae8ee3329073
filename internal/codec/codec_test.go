package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_RoundTrip(t *testing.T) {
	tests := []struct {
		codec       string
		compression string
	}{
		{"msgpack", "zstd"},
		{"msgpack", "none"},
		{"json", "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.codec+"/"+tt.compression, func(t *testing.T) {
			s, err := New(tt.codec, tt.compression)
			require.NoError(t, err)

			in := map[string]any{"rows": "1024", "model": "linear"}
			data, err := s.Serialize(in)
			require.NoError(t, err)

			var out map[string]any
			require.NoError(t, s.Deserialize(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("xml", "none")
	assert.Error(t, err)

	_, err = New("json", "lz4")
	assert.Error(t, err)
}

func TestDeserialize_Corrupt(t *testing.T) {
	s := Default()
	var out map[string]any
	assert.Error(t, s.Deserialize([]byte("not zstd"), &out))
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, "msgpack", s.CodecName())
	assert.Equal(t, CompressionZstd, s.Compression())
}
