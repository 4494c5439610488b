// Package wire holds the ordered object used to build request bodies whose
// key order is significant to the exchange, both as JSON and as msgpack.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Field is one key/value pair of an Object.
type Field struct {
	Key   string
	Value any
}

// Object is a map that keeps insertion order. Values may be string, bool,
// signed or unsigned integers, nil, Object or []any / []Object.
type Object []Field

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of key in place or appends it.
func (o *Object) Set(key string, value any) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Field{Key: key, Value: value})
}

// Keys returns the keys in order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, f := range o {
		keys[i] = f.Key
	}
	return keys
}

// MarshalJSON writes the fields in order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Msgpack encodes v with maps written in Object order. Integers use the
// most compact msgpack representation.
func Msgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encode(enc, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(enc *msgpack.Encoder, v any) error {
	switch val := v.(type) {
	case nil:
		return enc.EncodeNil()
	case string:
		return enc.EncodeString(val)
	case bool:
		return enc.EncodeBool(val)
	case int:
		return enc.EncodeInt(int64(val))
	case int32:
		return enc.EncodeInt(int64(val))
	case int64:
		return enc.EncodeInt(val)
	case uint32:
		return enc.EncodeUint(uint64(val))
	case uint64:
		return enc.EncodeUint(val)
	case Object:
		if err := enc.EncodeMapLen(len(val)); err != nil {
			return err
		}
		for _, f := range val {
			if err := enc.EncodeString(f.Key); err != nil {
				return err
			}
			if err := encode(enc, f.Value); err != nil {
				return fmt.Errorf("field %s: %w", f.Key, err)
			}
		}
		return nil
	case []Object:
		if err := enc.EncodeArrayLen(len(val)); err != nil {
			return err
		}
		for _, item := range val {
			if err := encode(enc, item); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := enc.EncodeArrayLen(len(val)); err != nil {
			return err
		}
		for _, item := range val {
			if err := encode(enc, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported msgpack value %T", v)
	}
}
