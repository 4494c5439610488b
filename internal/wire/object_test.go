package wire

import (
	"bytes"
	"testing"
)

func TestMarshalJSONKeepsOrder(t *testing.T) {
	o := Object{
		{Key: "type", Value: "order"},
		{Key: "orders", Value: []Object{{
			{Key: "a", Value: 0},
			{Key: "b", Value: true},
			{Key: "p", Value: "1891.4"},
		}}},
		{Key: "grouping", Value: "na"},
	}
	got, err := o.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"type":"order","orders":[{"a":0,"b":true,"p":"1891.4"}],"grouping":"na"}`
	if string(got) != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestSetReplacesInPlace(t *testing.T) {
	o := Object{{Key: "a", Value: 1}, {Key: "b", Value: 2}}
	o.Set("a", 3)
	o.Set("c", 4)
	if v, _ := o.Get("a"); v != 3 {
		t.Fatalf("a = %v", v)
	}
	keys := o.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestMsgpackOrderedMap(t *testing.T) {
	got, err := Msgpack(Object{{Key: "type", Value: "cancel"}, {Key: "o", Value: int64(7)}, {Key: "r", Value: false}})
	if err != nil {
		t.Fatalf("Msgpack: %v", err)
	}
	// fixmap(3) "type" "cancel" "o" 7 "r" false
	want := []byte{0x83,
		0xa4, 't', 'y', 'p', 'e', 0xa6, 'c', 'a', 'n', 'c', 'e', 'l',
		0xa1, 'o', 0x07,
		0xa1, 'r', 0xc2,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x\nwant % x", got, want)
	}
}

func TestMsgpackArrayAndNil(t *testing.T) {
	got, err := Msgpack([]any{nil, "x", uint64(300)})
	if err != nil {
		t.Fatalf("Msgpack: %v", err)
	}
	want := []byte{0x93, 0xc0, 0xa1, 'x', 0xcd, 0x01, 0x2c}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x\nwant % x", got, want)
	}
}

func TestMsgpackRejectsFloats(t *testing.T) {
	if _, err := Msgpack(Object{{Key: "p", Value: 1.5}}); err == nil {
		t.Fatalf("floats must not be encoded")
	}
}
