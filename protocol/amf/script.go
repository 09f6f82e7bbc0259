package amf

import (
	"bytes"
	"errors"
	"fmt"
)

var ErrScriptName = errors.New("amf: script data does not start with a string")

// ScriptData is the body of an FLV script tag: a handler name such as
// onMetaData followed by its arguments.
type ScriptData struct {
	Name string
	Args Array
}

// Object returns the first argument that is an object or ecma array.
func (s *ScriptData) Object() (Object, bool) {
	for _, a := range s.Args {
		if o, ok := a.(Object); ok {
			return o, true
		}
	}
	return nil, false
}

func DecodeScriptData(b []byte) (*ScriptData, error) {
	dec := new(Decoder)
	vals, err := dec.DecodeBatch(bytes.NewReader(b), AMF0)
	if err != nil {
		return nil, fmt.Errorf("decode script data: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrScriptName
	}
	name, ok := vals[0].(string)
	if !ok {
		return nil, ErrScriptName
	}
	return &ScriptData{Name: name, Args: vals[1:]}, nil
}

// EncodeScriptData encodes name and args. Object arguments are written as
// ecma arrays, which is what onMetaData producers emit.
func EncodeScriptData(name string, args ...any) ([]byte, error) {
	enc := new(Encoder)
	buf := new(bytes.Buffer)
	if _, err := enc.EncodeAmf0String(buf, name, true); err != nil {
		return nil, err
	}
	for _, a := range args {
		var err error
		if o, ok := a.(Object); ok {
			_, err = enc.EncodeAmf0EcmaArray(buf, o, true)
		} else {
			_, err = enc.EncodeAmf0(buf, a)
		}
		if err != nil {
			return nil, fmt.Errorf("encode script data: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Number returns o[key] as a float64 when it holds a number.
func (o Object) Number(key string) (float64, bool) {
	v, ok := o[key].(float64)
	return v, ok
}
