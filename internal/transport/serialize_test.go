package transport

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeSerializeBasicTypes(t *testing.T) {
	type sample struct {
		Name    string `json:"name"`
		Count   int    `json:"count"`
		Enabled bool   `json:"enabled"`
		hidden  string
	}

	result := SafeSerialize(sample{Name: "test", Count: 3, Enabled: true, hidden: "x"})

	assert.Equal(t, "test", result["name"])
	assert.Equal(t, int64(3), result["count"])
	assert.Equal(t, true, result["enabled"])
	assert.NotContains(t, result, "hidden")
}

func TestSafeSerializeBytes(t *testing.T) {
	type sample struct {
		Data []byte `json:"data"`
	}

	result := SafeSerialize(sample{Data: []byte{1, 2, 3}})

	data, ok := result["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "bytes", data["__type"])
	assert.Equal(t, "AQID", data["data"])
}

func TestSafeSerializeBuffer(t *testing.T) {
	type sample struct {
		Buf *bytes.Buffer `json:"buf"`
	}

	result := SafeSerialize(sample{Buf: bytes.NewBufferString("hello")})

	buf, ok := result["buf"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "buffer", buf["__type"])
	assert.Equal(t, "aGVsbG8=", buf["data"])
}

func TestSafeSerializeFunction(t *testing.T) {
	type sample struct {
		Callback func() `json:"callback"`
	}

	result := SafeSerialize(sample{Callback: func() {}})

	fn, ok := result["callback"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "function", fn["__type"])
	assert.NotEmpty(t, fn["name"])
}

func TestSafeSerializeTime(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	type sample struct {
		SentAt time.Time `json:"sent_at"`
	}

	result := SafeSerialize(sample{SentAt: ts})

	assert.Equal(t, "2024-06-01T12:00:00Z", result["sent_at"])
}

func TestSafeSerializeNilAndNested(t *testing.T) {
	type inner struct {
		Value string `json:"value"`
	}
	type sample struct {
		Child  *inner            `json:"child"`
		Absent *inner            `json:"absent"`
		Tags   map[string]string `json:"tags"`
	}

	result := SafeSerialize(sample{
		Child: &inner{Value: "ok"},
		Tags:  map[string]string{"a": "b"},
	})

	child, ok := result["child"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", child["value"])
	assert.Nil(t, result["absent"])

	tags, ok := result["tags"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "b", tags["a"])
}

func TestSafeSerializeChannelIsOpaque(t *testing.T) {
	type sample struct {
		Signal chan struct{} `json:"signal"`
	}

	result := SafeSerialize(sample{Signal: make(chan struct{})})

	signal, ok := result["signal"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "opaque", signal["__type"])
}

func TestSafeSerializeCyclicDepthLimit(t *testing.T) {
	type node struct {
		Next *node `json:"next"`
	}
	a := &node{}
	b := &node{Next: a}
	a.Next = b

	result := SafeSerialize(a)

	// o ciclo é cortado pelo limite de profundidade, nunca por pânico
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestSafeSerializeNonStructWrapped(t *testing.T) {
	result := SafeSerialize("plain string")

	assert.Equal(t, "plain string", result["value"])
}

func TestSerializationFallback(t *testing.T) {
	result := SerializationFallback(assert.AnError)

	assert.Equal(t, true, result["__serialization_error"])
	assert.NotEmpty(t, result["error"])
}

func TestMustJSONAlwaysReturnsBytes(t *testing.T) {
	data := MustJSON(map[string]interface{}{"key": "value"})

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "value", decoded["key"])
}
