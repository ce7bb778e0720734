package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeValue(t *testing.T) {
	assert.Equal(t, "hello", encodeValue("hello"))
	assert.Equal(t, "42", encodeValue(42))
	assert.Equal(t, "3.5", encodeValue(3.5))
	assert.Equal(t, `["a","b"]`, encodeValue([]string{"a", "b"}))
}

func TestDecodeValue(t *testing.T) {
	t.Run("structured literal", func(t *testing.T) {
		v := decodeValue(`["a","b","c"]`)
		assert.Equal(t, []any{"a", "b", "c"}, v)
	})

	t.Run("integer", func(t *testing.T) {
		assert.Equal(t, 42, decodeValue("42"))
		assert.Equal(t, -7, decodeValue("-7"))
	})

	t.Run("raw text", func(t *testing.T) {
		assert.Equal(t, "hello world", decodeValue("hello world"))
		assert.Equal(t, "3.5", decodeValue("3.5"), "floats stay text, matching write format")
		assert.Equal(t, "-", decodeValue("-"))
	})

	t.Run("malformed literal falls back to text", func(t *testing.T) {
		assert.Equal(t, "[not json", decodeValue("[not json"))
	})
}

func TestValueRoundTrip(t *testing.T) {
	// The observable contract: what goes in as a list or int comes back as one.
	for _, v := range []any{42, "plain", []string{"x", "y"}} {
		decoded := decodeValue(encodeValue(v))
		switch orig := v.(type) {
		case int:
			assert.Equal(t, orig, decoded)
		case string:
			assert.Equal(t, orig, decoded)
		case []string:
			arr, ok := decoded.([]any)
			assert.True(t, ok)
			assert.Len(t, arr, len(orig))
		}
	}
}
