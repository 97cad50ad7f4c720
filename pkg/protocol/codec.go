package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Codec errors. Every decode failure wraps one of these.
var (
	ErrTruncated  = errors.New("protocol: truncated field")
	ErrFieldOrder = errors.New("protocol: field out of order")
	ErrWireType   = errors.New("protocol: unexpected wire type")
	ErrOddSamples = errors.New("protocol: sample block has odd length")
)

// Encoder appends an ordered sequence of typed fields. The i-th field written
// carries tag number i.
type Encoder struct {
	buf  []byte
	next protowire.Number
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{next: 1}
}

func (e *Encoder) tag(typ protowire.Type) {
	e.buf = protowire.AppendTag(e.buf, e.next, typ)
	e.next++
}

// PutString appends a length-delimited string.
func (e *Encoder) PutString(s string) *Encoder {
	e.tag(protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
	return e
}

// PutInt appends a zig-zag varint.
func (e *Encoder) PutInt(v int64) *Encoder {
	e.tag(protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, protowire.EncodeZigZag(v))
	return e
}

// PutUint appends a plain varint.
func (e *Encoder) PutUint(v uint64) *Encoder {
	e.tag(protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
	return e
}

// PutSamples appends a block of signed 16-bit PCM samples, little-endian.
func (e *Encoder) PutSamples(samples []int16) *Encoder {
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	e.tag(protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, raw)
	return e
}

// Bytes returns the encoded message.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads fields in the order they were written.
type Decoder struct {
	buf  []byte
	next protowire.Number
}

// NewDecoder returns a decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{buf: data, next: 1}
}

// More reports whether unread fields remain.
func (d *Decoder) More() bool {
	return len(d.buf) > 0
}

func (d *Decoder) tag(want protowire.Type) error {
	if len(d.buf) == 0 {
		return fmt.Errorf("%w: field %d missing", ErrTruncated, d.next)
	}
	num, typ, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		return fmt.Errorf("%w: tag: %v", ErrTruncated, protowire.ParseError(n))
	}
	if num != d.next {
		return fmt.Errorf("%w: got %d, want %d", ErrFieldOrder, num, d.next)
	}
	if typ != want {
		return fmt.Errorf("%w: field %d has type %d, want %d", ErrWireType, num, typ, want)
	}
	d.buf = d.buf[n:]
	d.next++
	return nil
}

// ReadString reads a length-delimited string.
func (d *Decoder) ReadString() (string, error) {
	if err := d.tag(protowire.BytesType); err != nil {
		return "", err
	}
	s, n := protowire.ConsumeString(d.buf)
	if n < 0 {
		return "", fmt.Errorf("%w: string: %v", ErrTruncated, protowire.ParseError(n))
	}
	d.buf = d.buf[n:]
	return s, nil
}

// ReadInt reads a zig-zag varint.
func (d *Decoder) ReadInt() (int64, error) {
	v, err := d.ReadUint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

// ReadUint reads a plain varint.
func (d *Decoder) ReadUint() (uint64, error) {
	if err := d.tag(protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		return 0, fmt.Errorf("%w: varint: %v", ErrTruncated, protowire.ParseError(n))
	}
	d.buf = d.buf[n:]
	return v, nil
}

// ReadSamples reads a block written by PutSamples.
func (d *Decoder) ReadSamples() ([]int16, error) {
	if err := d.tag(protowire.BytesType); err != nil {
		return nil, err
	}
	raw, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		return nil, fmt.Errorf("%w: samples: %v", ErrTruncated, protowire.ParseError(n))
	}
	if len(raw)%2 != 0 {
		return nil, ErrOddSamples
	}
	d.buf = d.buf[n:]
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return out, nil
}
