// Package codec encodes node internals for the template store.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns values into bytes and back.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// Compression names a compression algorithm.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// JSONCodec encodes with encoding/json.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                    { return "json" }

// MsgPackCodec encodes with MessagePack.
type MsgPackCodec struct{}

func (MsgPackCodec) Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func (MsgPackCodec) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (MsgPackCodec) Name() string                    { return "msgpack" }

// Serializer encodes then compresses.
type Serializer struct {
	codec       Codec
	compression Compression
}

// New builds a serializer from configuration names.
func New(codecName string, compression string) (*Serializer, error) {
	var c Codec
	switch codecName {
	case "msgpack":
		c = MsgPackCodec{}
	case "json":
		c = JSONCodec{}
	default:
		return nil, fmt.Errorf("unknown codec %q", codecName)
	}

	switch Compression(compression) {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
	return &Serializer{codec: c, compression: Compression(compression)}, nil
}

// Default returns the msgpack+zstd serializer.
func Default() *Serializer {
	return &Serializer{codec: MsgPackCodec{}, compression: CompressionZstd}
}

// CodecName returns the codec's name.
func (s *Serializer) CodecName() string { return s.codec.Name() }

// Compression returns the compression in use.
func (s *Serializer) Compression() Compression { return s.compression }

// Serialize encodes and compresses v.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%s encoding failed: %w", s.codec.Name(), err)
	}
	data, err = s.compress(data)
	if err != nil {
		return nil, fmt.Errorf("%s compression failed: %w", s.compression, err)
	}
	return data, nil
}

// Deserialize decompresses and decodes data into v.
func (s *Serializer) Deserialize(data []byte, v any) error {
	data, err := s.decompress(data)
	if err != nil {
		return fmt.Errorf("%s decompression failed: %w", s.compression, err)
	}
	if err := s.codec.Decode(data, v); err != nil {
		return fmt.Errorf("%s decoding failed: %w", s.codec.Name(), err)
	}
	return nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}
