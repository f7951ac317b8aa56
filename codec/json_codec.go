package codec

import (
	"encoding/json"
	"errors"

	"svcpool/message"
)

// JSONCodec writes the envelope as a JSON object with short keys. The
// payload is already JSON, so it is embedded as is rather than base64 encoded.
type JSONCodec struct{}

type jsonEnvelope struct {
	Handle        uint64          `json:"h,omitempty"`
	ServiceMethod string          `json:"m,omitempty"`
	Status        message.Status  `json:"s,omitempty"`
	Error         string          `json:"e,omitempty"`
	Payload       json.RawMessage `json:"p,omitempty"`
}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return nil, errors.New("JSONCodec: v must be *RPCMessage")
	}
	if len(msg.Payload) > 0 && !json.Valid(msg.Payload) {
		return nil, errors.New("JSONCodec: payload is not valid JSON")
	}
	return json.Marshal(jsonEnvelope{
		Handle:        msg.Handle,
		ServiceMethod: msg.ServiceMethod,
		Status:        msg.Status,
		Error:         msg.Error,
		Payload:       msg.Payload,
	})
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return errors.New("JSONCodec: v must be *RPCMessage")
	}
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*msg = message.RPCMessage{
		Handle:        env.Handle,
		ServiceMethod: env.ServiceMethod,
		Status:        env.Status,
		Error:         env.Error,
		Payload:       env.Payload,
	}
	return nil
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
