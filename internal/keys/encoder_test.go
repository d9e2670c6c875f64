package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoder_Numeric(t *testing.T) {
	e := FitLabelEncoder([]any{int64(10), int64(2), nil, int64(1), 2.0, int32(1)})

	assert.Equal(t, 3, e.Len())
	assert.Equal(t, []any{int64(1), int64(2), int64(10)}, e.Classes())

	out, err := e.Transform([]any{int64(10), int(1), nil, 2.0})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(0), nil, int64(1)}, out)

	_, err = e.Encode("1")
	assert.Error(t, err, "numeric-looking text is not a number")
}

func TestLabelEncoder_BigIntegers(t *testing.T) {
	// Adjacent values above 2^53 collapse when compared as float64.
	e := FitLabelEncoder([]any{int64(9007199254740993), int64(9007199254740992), uint64(18446744073709551615)})

	require.Equal(t, 3, e.Len())
	out, err := e.Transform([]any{int64(9007199254740992), int64(9007199254740993), uint64(18446744073709551615)})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(1), int64(2)}, out)
}

func TestLabelEncoder_NumericLookingText(t *testing.T) {
	e := FitLabelEncoder([]any{"7", "007", "7.0", "007"})

	require.Equal(t, 3, e.Len())
	assert.Equal(t, []any{"007", "7", "7.0"}, e.Classes())

	out, err := e.Transform([]any{"7.0", "007", "7"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(0), int64(1)}, out)
}

func TestLabelEncoder_BytesMatchText(t *testing.T) {
	e := FitLabelEncoder([]any{"a1", []byte("b2")})

	code, err := e.Encode("b2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), code)
}

func TestLabelEncoder_Text(t *testing.T) {
	e := FitLabelEncoder([]any{"b", "a", int64(10), "c", "a"})

	assert.Equal(t, []any{int64(10), "a", "b", "c"}, e.Classes())
	code, err := e.Encode("c")
	require.NoError(t, err)
	assert.Equal(t, int64(3), code)
}

func TestLabelEncoder_Unseen(t *testing.T) {
	e := FitLabelEncoder([]any{int64(1), int64(2)})

	_, err := e.Transform([]any{int64(1), int64(3)})
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, int64(3), encErr.Value)

	_, err = e.Encode("x")
	assert.Error(t, err)
}

func TestLabelEncoder_Empty(t *testing.T) {
	e := FitLabelEncoder([]any{nil, nil})
	assert.Equal(t, 0, e.Len())

	out, err := e.Transform([]any{nil})
	require.NoError(t, err)
	assert.Equal(t, []any{nil}, out)
}

func TestErrorMessages(t *testing.T) {
	ce := &ConsistencyError{Table: "items", Column: "order_id", Reason: "bad"}
	assert.Equal(t, "key consistency error on items.order_id: bad", ce.Error())

	ce = &ConsistencyError{Table: "items", Reason: "bad"}
	assert.Equal(t, "key consistency error on table items: bad", ce.Error())

	ee := &EncodingError{Table: "items", Column: "sku", Value: "x"}
	assert.Equal(t, "unseen label x in items.sku", ee.Error())
}
