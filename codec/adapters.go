package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var cborEncMode = func() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// RegisterCBOR registers a binary codec encoding values of type T in
// deterministic CBOR. Members of type T tagged binary are then embedded as
// compressed CBOR blobs instead of being written member by member.
func RegisterCBOR[T any](r *Registry) error {
	return r.Register(Binary(
		func(x T) ([]byte, error) { return cborEncMode.Marshal(x) },
		func(b []byte) (T, error) {
			var x T
			err := cbor.Unmarshal(b, &x)
			return x, err
		},
	))
}

// RegisterProto registers codecs for the protobuf message type T, which must
// be a pointer to a generated message struct. The textual form is protojson,
// the binary form is the protobuf wire format.
func RegisterProto[T proto.Message](r *Registry) error {
	newMessage := func() T {
		return reflect.New(reflect.TypeFor[T]().Elem()).Interface().(T)
	}
	e := Text(
		func(m T) (string, error) {
			b, err := protojson.Marshal(m)
			return string(b), err
		},
		func(s string) (T, error) {
			m := newMessage()
			err := protojson.Unmarshal([]byte(s), m)
			return m, err
		},
	)
	e.Binary = Binary(
		func(m T) ([]byte, error) {
			return proto.MarshalOptions{Deterministic: true}.Marshal(m)
		},
		func(b []byte) (T, error) {
			m := newMessage()
			err := proto.Unmarshal(b, m)
			return m, err
		},
	).Binary
	return r.Register(e)
}
