package transport

import "github.com/mcastellin/chatmesh/pkg/wire"

// decodeOrErrorFrame decodes payload into a Frame. On a decode error it
// still returns a usable Frame (service "erro", empty data) so callers can
// keep their handler signature uniform; the error is reported to the caller so it can
// log it, per spec.md §7's decode-error handling.
func decodeOrErrorFrame(payload []byte) (wire.Frame, error) {
	f, err := wire.Decode(payload)
	if err != nil {
		return wire.Frame{Service: "erro", Data: map[string]any{}}, err
	}
	return f, nil
}

func encodeFrame(f wire.Frame) ([]byte, error) {
	return wire.Encode(f)
}
