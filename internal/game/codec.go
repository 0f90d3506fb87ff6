package game

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// maxVarIntBytes is the longest encoding of a 32-bit VarInt.
	maxVarIntBytes = 5

	// maxPacketSize bounds a single status packet; real responses with a favicon stay well below it.
	maxPacketSize = 1 << 21
)

var (
	// ErrMalformed is returned when a server response cannot be parsed.
	ErrMalformed = errors.New("malformed response")

	// ErrResponseTooLarge is returned when a server announces a packet above maxPacketSize.
	ErrResponseTooLarge = errors.New("response too large")
)

// AppendVarInt appends v using the protocol's LEB128-style encoding.
func AppendVarInt(b []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		b = append(b, byte(u)|0x80)
		u >>= 7
	}
	return append(b, byte(u))
}

// ReadVarInt decodes one VarInt from r.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var result uint32
	for i := 0; i < maxVarIntBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, fmt.Errorf("%w: varint too long", ErrMalformed)
}

// AppendString appends a VarInt length-prefixed UTF-8 string.
func AppendString(b []byte, s string) []byte {
	b = AppendVarInt(b, int32(len(s)))
	return append(b, s...)
}

// ReadString decodes a VarInt length-prefixed string from r.
func ReadString(r *bytes.Reader) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > r.Len() {
		return "", fmt.Errorf("%w: string length %d exceeds packet", ErrMalformed, n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// EncodePacket prefixes a packet id and payload with their total length.
func EncodePacket(id int32, payload []byte) []byte {
	body := AppendVarInt(nil, id)
	body = append(body, payload...)

	out := AppendVarInt(make([]byte, 0, len(body)+maxVarIntBytes), int32(len(body)))
	return append(out, body...)
}

// ReadPacket reads one length-prefixed packet and returns its id and payload reader.
func ReadPacket(r interface {
	io.Reader
	io.ByteReader
}) (int32, *bytes.Reader, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return 0, nil, err
	}
	if length <= 0 {
		return 0, nil, fmt.Errorf("%w: packet length %d", ErrMalformed, length)
	}
	if length > maxPacketSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}

	br := bytes.NewReader(body)
	id, err := ReadVarInt(br)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: packet id: %v", ErrMalformed, err)
	}

	return id, br, nil
}

// appendUint16 appends v in network byte order.
func appendUint16(b []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(b, v)
}

// appendInt64 appends v in network byte order.
func appendInt64(b []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(v))
}
