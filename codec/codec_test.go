package codec

import (
	"testing"

	"svcpool/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = &message.RPCMessage{
	Handle:        7,
	ServiceMethod: "SecurityCenter.Encrypt",
	Status:        message.StatusRemoteError,
	Payload:       []byte(`{"Text":"SGVsbG8="}`),
	Error:         "boom",
}

func TestCodecs(t *testing.T) {
	for _, ct := range []CodecType{CodecTypeJSON, CodecTypeBinary} {
		t.Run(ct.String(), func(t *testing.T) {
			cdc := GetCodec(ct)
			assert.Equal(t, ct, cdc.Type())

			data, err := cdc.Encode(sample)
			require.NoError(t, err)

			var decoded message.RPCMessage
			require.NoError(t, cdc.Decode(data, &decoded))
			assert.Equal(t, *sample, decoded)
		})
	}
}

func TestCodecsRejectWrongType(t *testing.T) {
	for _, c := range []Codec{&JSONCodec{}, &BinaryCodec{}} {
		_, err := c.Encode("not a message")
		assert.Error(t, err)
		assert.Error(t, c.Decode([]byte("{}"), new(string)))
	}
}

func TestJSONCodecEmbedsPayload(t *testing.T) {
	c := &JSONCodec{}
	data, err := c.Encode(&message.RPCMessage{Handle: 2, ServiceMethod: "Compute.Add", Payload: []byte(`{"A":1,"B":2}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"h":2,"m":"Compute.Add","p":{"A":1,"B":2}}`, string(data))

	var decoded message.RPCMessage
	require.NoError(t, c.Decode([]byte(`{"s":1,"e":"unknown handle 9"}`), &decoded))
	assert.Equal(t, message.StatusNotFound, decoded.Status)
	assert.Nil(t, decoded.Payload)

	_, err = c.Encode(&message.RPCMessage{Payload: []byte("not json")})
	assert.Error(t, err)
}

func TestBinaryCodecShortBody(t *testing.T) {
	c := &BinaryCodec{}
	data, err := c.Encode(sample)
	require.NoError(t, err)

	var decoded message.RPCMessage
	assert.ErrorIs(t, c.Decode(data[:len(data)-2], &decoded), errShortBody)
	assert.ErrorIs(t, c.Decode(nil, &decoded), errShortBody)
}

func TestParseCodecType(t *testing.T) {
	ct, err := ParseCodecType("binary")
	require.NoError(t, err)
	assert.Equal(t, CodecTypeBinary, ct)

	ct, err = ParseCodecType("")
	require.NoError(t, err)
	assert.Equal(t, CodecTypeJSON, ct)

	_, err = ParseCodecType("gob")
	assert.Error(t, err)
}

func benchmarkCodec(b *testing.B, ct CodecType) {
	cdc := GetCodec(ct)
	msg := &message.RPCMessage{
		Handle:        3,
		ServiceMethod: "Compute.Add",
		Payload:       []byte(`{"A":1,"B":2}`),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := cdc.Encode(msg)
		var out message.RPCMessage
		cdc.Decode(data, &out)
	}
}

func BenchmarkCodecJSON(b *testing.B)   { benchmarkCodec(b, CodecTypeJSON) }
func BenchmarkCodecBinary(b *testing.B) { benchmarkCodec(b, CodecTypeBinary) }
