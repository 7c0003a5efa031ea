package wire

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Encode marshals a wire message for the dispatcher.
func Encode(msg any) ([]byte, error) {
	bz, err := json.Marshal(msg)
	if err != nil {
		return nil, eris.Wrap(err, "encode wire message")
	}
	return bz, nil
}

// Decode unmarshals a wire message of the given type.
func Decode[T any](bz []byte) (T, error) {
	msg := new(T)
	if err := json.Unmarshal(bz, msg); err != nil {
		return *msg, eris.Wrap(err, "decode wire message")
	}
	return *msg, nil
}
