package cachestore

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/klauspost/compress/zstd"
)

const (
	encodingIdentity = "identity"
	encodingZstd     = "zstd"
)

// bodyCodec compresses entry bodies at rest. EncodeAll and DecodeAll are safe
// for concurrent use, so one codec serves a whole store.
type bodyCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newBodyCodec() (*bodyCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithLowerEncoderMem(true))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &bodyCodec{enc: enc, dec: dec}, nil
}

func (c *bodyCodec) encode(body []byte) ([]byte, string) {
	if c == nil || len(body) == 0 {
		return body, encodingIdentity
	}
	return c.enc.EncodeAll(body, make([]byte, 0, len(body)/2)), encodingZstd
}

func (c *bodyCodec) decode(data []byte, encoding string) ([]byte, error) {
	switch encoding {
	case encodingIdentity, "":
		return data, nil
	case encodingZstd:
		if c == nil {
			d, err := zstd.NewReader(nil)
			if err != nil {
				return nil, fmt.Errorf("zstd decoder: %w", err)
			}
			defer d.Close()
			return d.DecodeAll(data, nil)
		}
		return c.dec.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unknown body encoding %q", encoding)
	}
}

func (c *bodyCodec) close() {
	if c == nil {
		return
	}
	_ = c.enc.Close()
	c.dec.Close()
}

func encodeHeader(h http.Header) (string, error) {
	if h == nil {
		h = http.Header{}
	}
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	return string(data), nil
}

func decodeHeader(s string) (http.Header, error) {
	h := http.Header{}
	if s == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
