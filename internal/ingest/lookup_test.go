package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func doc(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	assert.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestStringAt(t *testing.T) {
	d := doc(t, `{
		"key": {"id": "ABC", "fromMe": true},
		"message": {"photo": [{"file_id": "small"}, {"file_id": "big"}]},
		"from": {"id": 987654321},
		"score": 4.5
	}`)

	t.Run("nested path", func(t *testing.T) {
		assert.Equal(t, "ABC", stringAt(d, "key.id"))
	})

	t.Run("missing path", func(t *testing.T) {
		assert.Equal(t, "", stringAt(d, "key.missing.deeper"))
	})

	t.Run("array resolves to last element", func(t *testing.T) {
		assert.Equal(t, "big", stringAt(d, "message.photo.file_id"))
	})

	t.Run("integer number formats without exponent", func(t *testing.T) {
		assert.Equal(t, "987654321", stringAt(d, "from.id"))
	})

	t.Run("bool formats as text", func(t *testing.T) {
		assert.Equal(t, "true", stringAt(d, "key.fromMe"))
	})
}

func TestFirstString(t *testing.T) {
	d := doc(t, `{"b": "", "c": "found"}`)
	assert.Equal(t, "found", firstString(d, "a", "b", "c"))
	assert.Equal(t, "", firstString(d, "a", "b"))
}

func TestBoolAndIntAt(t *testing.T) {
	d := doc(t, `{"key": {"fromMe": true}, "messageTimestamp": 1700000000}`)

	assert.True(t, boolAt(d, "key.fromMe"))
	assert.False(t, boolAt(d, "key.other"))
	assert.Equal(t, int64(1700000000), intAt(d, "messageTimestamp"))
	assert.Equal(t, int64(0), intAt(d, "missing"))
}
