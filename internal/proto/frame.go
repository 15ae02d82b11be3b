package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the width of the little-endian length prefix.
	HeaderSize = 4
	// DefaultMaxFrame bounds the declared body length of a reliable frame.
	DefaultMaxFrame = 4096
)

var ErrFrameLength = errors.New("proto: frame length out of range")

// EncodeFrame renders msg with its length prefix, ready to be written to a
// reliable carrier.
func EncodeFrame(msg Message) ([]byte, error) {
	body, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	return AppendFrame(make([]byte, 0, HeaderSize+len(body)), body), nil
}

// MustEncodeFrame is EncodeFrame for messages the server builds itself.
func MustEncodeFrame(msg Message) []byte {
	frame, err := EncodeFrame(msg)
	if err != nil {
		panic(err)
	}
	return frame
}

// AppendFrame appends the length prefix and body to dst.
func AppendFrame(dst, body []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(body)))
	return append(dst, body...)
}

// ReadFrame reads one length-prefixed body from r. A declared length of zero
// or above maxLen is rejected before the body is read.
func ReadFrame(r io.Reader, maxLen int) ([]byte, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxFrame
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 || length > uint32(maxLen) {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrFrameLength, length, maxLen)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}

// SplitFrame validates a buffer holding exactly one length-prefixed frame and
// returns its body. Message-oriented carriers use it.
func SplitFrame(frame []byte, maxLen int) ([]byte, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxFrame
	}
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: short header (%d bytes)", ErrFrameLength, len(frame))
	}
	length := binary.LittleEndian.Uint32(frame[:HeaderSize])
	if length == 0 || length > uint32(maxLen) {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrFrameLength, length, maxLen)
	}
	if int(length) != len(frame)-HeaderSize {
		return nil, fmt.Errorf("%w: declared %d carried %d", ErrFrameLength, length, len(frame)-HeaderSize)
	}
	return frame[HeaderSize:], nil
}
