package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalFieldAccess(t *testing.T) {
	v, err := Eval([]byte(`{"token":"abc123","user":{"id":7}}`), "$.token")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)

	v, err = Eval([]byte(`{"token":"abc123","user":{"id":7}}`), "user.id")
	require.NoError(t, err)
	assert.Equal(t, float64(7), v)
}

func TestEvalNumericIndex(t *testing.T) {
	v, err := Eval([]byte(`{"items":["a","b","c"]}`), "$.items.1")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestEvalWildcard(t *testing.T) {
	v, err := Eval([]byte(`{"items":[{"id":1},{"id":2},{"id":3}]}`), "$.items.*.id")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(1), float64(2), float64(3)}, v)
}

func TestEvalMissingPathNotFound(t *testing.T) {
	_, err := Eval([]byte(`{"a":1}`), "$.b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvalInvalidJSON(t *testing.T) {
	_, err := Eval([]byte(`not json`), "$.a")
	assert.ErrorIs(t, err, ErrNotJSON)
}
