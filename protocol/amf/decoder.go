package amf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// Decode reads one value of the given version from r.
func (d *Decoder) Decode(r io.Reader, ver Version) (any, error) {
	switch ver {
	case AMF0:
		return d.DecodeAmf0(r)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ver)
}

// DecodeBatch reads AMF0 values until r is exhausted.
func (d *Decoder) DecodeBatch(r io.Reader, ver Version) (ret []any, err error) {
	for {
		v, err := d.Decode(r, ver)
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return ret, err
		}
		ret = append(ret, v)
	}
}

func (d *Decoder) DecodeAmf0(r io.Reader) (any, error) {
	marker, err := readMarker(r)
	if err != nil {
		return nil, err
	}

	switch marker {
	case AMF0_NUMBER_MARKER:
		return d.decodeAmf0Number(r)
	case AMF0_BOOLEAN_MARKER:
		return d.decodeAmf0Boolean(r)
	case AMF0_STRING_MARKER:
		return d.decodeAmf0String(r)
	case AMF0_OBJECT_MARKER:
		return d.decodeAmf0Object(r)
	case AMF0_NULL_MARKER, AMF0_UNDEFINED_MARKER:
		return nil, nil
	case AMF0_ECMA_ARRAY_MARKER:
		return d.decodeAmf0EcmaArray(r)
	case AMF0_STRICT_ARRAY_MARKER:
		return d.decodeAmf0StrictArray(r)
	case AMF0_DATE_MARKER:
		return d.decodeAmf0Date(r)
	case AMF0_LONG_STRING_MARKER:
		return d.decodeAmf0LongString(r)
	case AMF0_TYPED_OBJECT_MARKER:
		return d.decodeAmf0TypedObject(r)
	}

	return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedMarker, marker)
}

// marker: 1 byte 0x00
// format: 8 byte big endian float64
func (d *Decoder) decodeAmf0Number(r io.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("amf0 decode: unable to read number: %w", err)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

// marker: 1 byte 0x01
// format: 1 byte, 0x00 = false, 0x01 = true
func (d *Decoder) decodeAmf0Boolean(r io.Reader) (bool, error) {
	b, err := readByte(r)
	if err != nil {
		return false, fmt.Errorf("amf0 decode: unable to read boolean: %w", err)
	}
	return b != AMF0_BOOLEAN_FALSE, nil
}

// marker: 1 byte 0x02
// format:
// - 2 byte big endian uint16 header to determine size
// - n (size) byte utf8 string
func (d *Decoder) decodeAmf0String(r io.Reader) (string, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", fmt.Errorf("amf0 decode: unable to read string length: %w", err)
	}
	return readUTF8(r, int(binary.BigEndian.Uint16(b[:])))
}

// marker: 1 byte 0x0c
// format:
// - 4 byte big endian uint32 header to determine size
// - n (size) byte utf8 string
func (d *Decoder) decodeAmf0LongString(r io.Reader) (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", fmt.Errorf("amf0 decode: unable to read long string length: %w", err)
	}
	return readUTF8(r, int(binary.BigEndian.Uint32(b[:])))
}

// marker: 1 byte 0x03
// format:
// - loop encoded string followed by encoded value
// - terminated with empty string followed by 1 byte 0x09
func (d *Decoder) decodeAmf0Object(r io.Reader) (Object, error) {
	result := make(Object)

	for {
		key, err := d.decodeAmf0String(r)
		if err != nil {
			return nil, err
		}

		if key == "" {
			marker, err := readMarker(r)
			if err != nil {
				return nil, fmt.Errorf("amf0 decode: unable to read object end: %w", err)
			}
			if marker != AMF0_OBJECT_END_MARKER {
				return nil, fmt.Errorf("amf0 decode: expected object end marker, got 0x%02x", marker)
			}
			return result, nil
		}

		value, err := d.DecodeAmf0(r)
		if err != nil {
			return nil, fmt.Errorf("amf0 decode: unable to decode object value for %s: %w", key, err)
		}
		result[key] = value
	}
}

// marker: 1 byte 0x08
// format:
// - 4 byte big endian uint32 with number of associative array items
// - the same key value loop as an object
func (d *Decoder) decodeAmf0EcmaArray(r io.Reader) (Object, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, fmt.Errorf("amf0 decode: unable to read ecma array length: %w", err)
	}

	result, err := d.decodeAmf0Object(r)
	if err != nil {
		return nil, fmt.Errorf("amf0 decode: unable to decode ecma array: %w", err)
	}
	return result, nil
}

// marker: 1 byte 0x0a
// format:
// - 4 byte big endian uint32 to determine length of associative array
// - n (length) encoded values
func (d *Decoder) decodeAmf0StrictArray(r io.Reader) (Array, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, fmt.Errorf("amf0 decode: unable to read strict array length: %w", err)
	}

	n := binary.BigEndian.Uint32(b[:])
	result := make(Array, 0, min(n, 1024))
	for i := uint32(0); i < n; i++ {
		v, err := d.DecodeAmf0(r)
		if err != nil {
			return nil, fmt.Errorf("amf0 decode: unable to decode strict array item %d: %w", i, err)
		}
		result = append(result, v)
	}
	return result, nil
}

// marker: 1 byte 0x0b
// format:
// - normal number format:
//   - 8 byte big endian float64
//
// - 2 byte unused
func (d *Decoder) decodeAmf0Date(r io.Reader) (time.Time, error) {
	ms, err := d.decodeAmf0Number(r)
	if err != nil {
		return time.Time{}, fmt.Errorf("amf0 decode: unable to decode date: %w", err)
	}

	var tz [2]byte
	if _, err := io.ReadFull(r, tz[:]); err != nil {
		return time.Time{}, fmt.Errorf("amf0 decode: unable to read date timezone: %w", err)
	}

	return time.UnixMilli(int64(ms)).UTC(), nil
}

// marker: 1 byte 0x10
// format:
// - normal string format:
//   - 2 byte big endian uint16 header to determine size
//   - n (size) byte utf8 string
//
// - normal object format
func (d *Decoder) decodeAmf0TypedObject(r io.Reader) (*TypedObject, error) {
	result := NewTypedObject()

	var err error
	if result.Type, err = d.decodeAmf0String(r); err != nil {
		return nil, fmt.Errorf("amf0 decode: unable to read typed object type: %w", err)
	}

	if result.Object, err = d.decodeAmf0Object(r); err != nil {
		return nil, fmt.Errorf("amf0 decode: unable to decode typed object: %w", err)
	}
	return result, nil
}

func readMarker(r io.Reader) (byte, error) {
	return readByte(r)
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readUTF8(r io.Reader, n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("amf0 decode: unable to read string: %w", err)
	}
	return string(b), nil
}
