package amf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"time"
)

// Encode writes val to w in the given version and returns the bytes written.
func (e *Encoder) Encode(w io.Writer, val any, ver Version) (int, error) {
	switch ver {
	case AMF0:
		return e.EncodeAmf0(w, val)
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ver)
}

// EncodeBatch writes each value in order.
func (e *Encoder) EncodeBatch(w io.Writer, ver Version, vals ...any) (n int, err error) {
	for _, v := range vals {
		m, err := e.Encode(w, v, ver)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (e *Encoder) EncodeAmf0(w io.Writer, val any) (int, error) {
	if val == nil {
		return e.EncodeAmf0Null(w, true)
	}

	switch v := val.(type) {
	case string:
		if len(v) > AMF0_STRING_MAX {
			return e.EncodeAmf0LongString(w, v, true)
		}
		return e.EncodeAmf0String(w, v, true)
	case bool:
		return e.EncodeAmf0Boolean(w, v, true)
	case float64:
		return e.EncodeAmf0Number(w, v, true)
	case time.Time:
		return e.EncodeAmf0Date(w, v, true)
	case Object:
		return e.EncodeAmf0Object(w, v, true)
	case map[string]any:
		return e.EncodeAmf0Object(w, Object(v), true)
	case Array:
		return e.EncodeAmf0StrictArray(w, v, true)
	case *TypedObject:
		return e.EncodeAmf0TypedObject(w, v, true)
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.EncodeAmf0Number(w, float64(rv.Int()), true)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return e.EncodeAmf0Number(w, float64(rv.Uint()), true)
	case reflect.Float32:
		return e.EncodeAmf0Number(w, rv.Float(), true)
	case reflect.Slice, reflect.Array:
		arr := make(Array, rv.Len())
		for i := range arr {
			arr[i] = rv.Index(i).Interface()
		}
		return e.EncodeAmf0StrictArray(w, arr, true)
	}

	return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, val)
}

// marker: 1 byte 0x00
// format: 8 byte big endian float64
func (e *Encoder) EncodeAmf0Number(w io.Writer, val float64, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_NUMBER_MARKER); err != nil {
			return
		}
		n++
	}

	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(val))
	m, err := w.Write(b[:])
	return n + m, err
}

// marker: 1 byte 0x01
// format: 1 byte, 0x00 = false, 0x01 = true
func (e *Encoder) EncodeAmf0Boolean(w io.Writer, val bool, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_BOOLEAN_MARKER); err != nil {
			return
		}
		n++
	}

	b := byte(AMF0_BOOLEAN_FALSE)
	if val {
		b = AMF0_BOOLEAN_TRUE
	}
	m, err := w.Write([]byte{b})
	return n + m, err
}

// marker: 1 byte 0x02
// format:
// - 2 byte big endian uint16 header to determine size
// - n (size) byte utf8 string
func (e *Encoder) EncodeAmf0String(w io.Writer, val string, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_STRING_MARKER); err != nil {
			return
		}
		n++
	}

	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(val)))
	m, err := w.Write(b[:])
	n += m
	if err != nil {
		return n, fmt.Errorf("amf0 encode: unable to write string length: %w", err)
	}

	m, err = io.WriteString(w, val)
	return n + m, err
}

// marker: 1 byte 0x0c
// format:
// - 4 byte big endian uint32 header to determine size
// - n (size) byte utf8 string
func (e *Encoder) EncodeAmf0LongString(w io.Writer, val string, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_LONG_STRING_MARKER); err != nil {
			return
		}
		n++
	}

	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(val)))
	m, err := w.Write(b[:])
	n += m
	if err != nil {
		return n, fmt.Errorf("amf0 encode: unable to write long string length: %w", err)
	}

	m, err = io.WriteString(w, val)
	return n + m, err
}

// marker: 1 byte 0x05
// no additional data
func (e *Encoder) EncodeAmf0Null(w io.Writer, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_NULL_MARKER); err != nil {
			return
		}
		n++
	}
	return
}

// marker: 1 byte 0x03
// format:
// - loop encoded string followed by encoded value
// - terminated with empty string followed by 1 byte 0x09
//
// Keys are written in sorted order so the output is stable.
func (e *Encoder) EncodeAmf0Object(w io.Writer, val Object, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_OBJECT_MARKER); err != nil {
			return
		}
		n++
	}

	m, err := e.encodeAmf0Properties(w, val)
	return n + m, err
}

// marker: 1 byte 0x08
// format:
// - 4 byte big endian uint32 with number of associative array items
// - the same key value loop as an object
func (e *Encoder) EncodeAmf0EcmaArray(w io.Writer, val Object, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_ECMA_ARRAY_MARKER); err != nil {
			return
		}
		n++
	}

	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(val)))
	m, err := w.Write(b[:])
	n += m
	if err != nil {
		return n, fmt.Errorf("amf0 encode: unable to write ecma array length: %w", err)
	}

	m, err = e.encodeAmf0Properties(w, val)
	return n + m, err
}

func (e *Encoder) encodeAmf0Properties(w io.Writer, val Object) (n int, err error) {
	keys := make([]string, 0, len(val))
	for k := range val {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var m int
	for _, k := range keys {
		m, err = e.EncodeAmf0String(w, k, false)
		n += m
		if err != nil {
			return n, fmt.Errorf("amf0 encode: unable to encode object key %s: %w", k, err)
		}

		m, err = e.EncodeAmf0(w, val[k])
		n += m
		if err != nil {
			return n, fmt.Errorf("amf0 encode: unable to encode object value for %s: %w", k, err)
		}
	}

	m, err = e.EncodeAmf0String(w, "", false)
	n += m
	if err != nil {
		return n, fmt.Errorf("amf0 encode: unable to encode object end: %w", err)
	}

	if err = writeMarker(w, AMF0_OBJECT_END_MARKER); err != nil {
		return n, fmt.Errorf("amf0 encode: unable to encode object end marker: %w", err)
	}
	return n + 1, nil
}

// marker: 1 byte 0x0a
// format:
// - 4 byte big endian uint32 to determine length of associative array
// - n (length) encoded values
func (e *Encoder) EncodeAmf0StrictArray(w io.Writer, val Array, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_STRICT_ARRAY_MARKER); err != nil {
			return
		}
		n++
	}

	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(val)))
	m, err := w.Write(b[:])
	n += m
	if err != nil {
		return n, fmt.Errorf("amf0 encode: unable to write strict array length: %w", err)
	}

	for i, v := range val {
		m, err = e.EncodeAmf0(w, v)
		n += m
		if err != nil {
			return n, fmt.Errorf("amf0 encode: unable to encode strict array item %d: %w", i, err)
		}
	}
	return n, nil
}

// marker: 1 byte 0x0b
// format:
// - normal number format:
//   - 8 byte big endian float64
//
// - 2 byte unused
func (e *Encoder) EncodeAmf0Date(w io.Writer, val time.Time, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_DATE_MARKER); err != nil {
			return
		}
		n++
	}

	m, err := e.EncodeAmf0Number(w, float64(val.UnixMilli()), false)
	n += m
	if err != nil {
		return n, err
	}

	m, err = w.Write([]byte{0, 0})
	return n + m, err
}

// marker: 1 byte 0x10
// format:
// - normal string format:
//   - 2 byte big endian uint16 header to determine size
//   - n (size) byte utf8 string
//
// - normal object format
func (e *Encoder) EncodeAmf0TypedObject(w io.Writer, val *TypedObject, encodeMarker bool) (n int, err error) {
	if encodeMarker {
		if err = writeMarker(w, AMF0_TYPED_OBJECT_MARKER); err != nil {
			return
		}
		n++
	}

	m, err := e.EncodeAmf0String(w, val.Type, false)
	n += m
	if err != nil {
		return n, fmt.Errorf("amf0 encode: unable to encode typed object type: %w", err)
	}

	m, err = e.EncodeAmf0Object(w, val.Object, false)
	return n + m, err
}

func writeMarker(w io.Writer, m byte) error {
	_, err := w.Write([]byte{m})
	return err
}
