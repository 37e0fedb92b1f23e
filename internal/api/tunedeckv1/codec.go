package tunedeckv1

import (
	"encoding/json"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

// CodecName is registered under the name connect uses for application/json.
const CodecName = "json"

// Codec marshals tunedeck.v1 messages as JSON. It replaces connect's
// protojson codec since the messages are plain Go structs.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	// Connect sends an empty body for messages with no fields set.
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}
	return nil
}

// WithCodec returns the option that installs Codec on a handler or client.
func WithCodec() connect.Option {
	return connect.WithCodec(Codec{})
}
