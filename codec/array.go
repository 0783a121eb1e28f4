package codec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Fixed width numeric slices are packed little-endian, element i occupying
// bytes [i*width, (i+1)*width) of the packed form. The binary codecs embed
// the packed bytes (compressed by the registry), the textual codecs render
// them in hexadecimal, two characters per byte.

type fixedWidth interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func registerArrays(r *Registry) {
	r.mustRegister(Entry{
		Type:   bytesType,
		Text:   bytesHex.Text,
		Binary: Binary(func(b []byte) ([]byte, error) { return b, nil }, cloneBytes).Binary,
	})

	r.mustRegister(fixedArray[int8]())
	r.mustRegister(fixedArray[int16]())
	r.mustRegister(fixedArray[uint16]())
	r.mustRegister(fixedArray[int32]())
	r.mustRegister(fixedArray[uint32]())
	r.mustRegister(fixedArray[int64]())
	r.mustRegister(fixedArray[uint64]())

	// Floating point slices have no textual form; without a binary
	// preference they are written element by element.
	r.mustRegister(Binary(Pack[float32], Unpack[float32]))
	r.mustRegister(Binary(Pack[float64], Unpack[float64]))
}

var bytesHex = Text(
	func(b []byte) (string, error) { return hex.EncodeToString(b), nil },
	hex.DecodeString,
)

var bytesType = bytesHex.Type

func cloneBytes(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}

func fixedArray[T fixedWidth]() Entry {
	e := Text(EncodeHex[T], DecodeHex[T])
	e.Binary = Binary(Pack[T], Unpack[T]).Binary
	return e
}

// Pack returns the little-endian fixed width representation of values.
func Pack[T fixedWidth](values []T) ([]byte, error) {
	return binary.Append(make([]byte, 0, len(values)*width[T]()), binary.LittleEndian, values)
}

// Unpack is the inverse of Pack. The length of b must be a multiple of the
// element width.
func Unpack[T fixedWidth](b []byte) ([]T, error) {
	w := width[T]()
	if len(b)%w != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %d byte elements", len(b), w)
	}
	values := make([]T, len(b)/w)
	if _, err := binary.Decode(b, binary.LittleEndian, values); err != nil {
		return nil, err
	}
	return values, nil
}

// EncodeHex returns the hexadecimal rendering of Pack(values).
func EncodeHex[T fixedWidth](values []T) (string, error) {
	b, err := Pack(values)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DecodeHex is the inverse of EncodeHex. Element i is decoded from the
// characters [2*i*width, 2*(i+1)*width) of s.
func DecodeHex[T fixedWidth](s string) ([]T, error) {
	chars := 2 * width[T]()
	if len(s)%chars != 0 {
		return nil, fmt.Errorf("%d hexadecimal characters is not a whole number of %d character elements", len(s), chars)
	}
	values := make([]T, len(s)/chars)
	buf := make([]byte, chars/2)
	for i := range values {
		if _, err := hex.Decode(buf, []byte(s[i*chars:(i+1)*chars])); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if _, err := binary.Decode(buf, binary.LittleEndian, &values[i]); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return values, nil
}

func width[T fixedWidth]() int {
	var x T
	return binary.Size(x)
}
