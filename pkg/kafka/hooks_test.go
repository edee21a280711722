package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookFuncs_NilFunctionsAreNoops(t *testing.T) {
	var h HookFuncs
	ctx := context.Background()

	gotCtx, data, err := h.BeforeHandle(ctx, "t", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, ctx, gotCtx)
	assert.Equal(t, []byte("x"), data)

	assert.NotPanics(t, func() {
		h.AfterHandle(ctx, "t", nil, nil)
		h.OnError(ctx, "t", nil, errors.New("x"))
	})
}

func TestHookFuncs_PanicsAreContained(t *testing.T) {
	h := HookFuncs{
		Before: func(context.Context, string, []byte) (context.Context, []byte, error) { panic("boom") },
		After:  func(context.Context, string, []byte, error) { panic("boom") },
		Err:    func(context.Context, string, []byte, error) { panic("boom") },
	}

	_, _, err := h.BeforeHandle(context.Background(), "t", nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)

	assert.NotPanics(t, func() {
		h.AfterHandle(context.Background(), "t", nil, nil)
		h.OnError(context.Background(), "t", nil, nil)
	})
}

func TestEncode(t *testing.T) {
	b, ct, err := encode("s")
	require.NoError(t, err)
	assert.Equal(t, []byte("s"), b)
	assert.Equal(t, "text/plain", ct)

	b, ct, err = encode(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))
	assert.Equal(t, "application/json", ct)

	b, ct, err = encode([]byte{0x1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1}, b)
	assert.Equal(t, "application/octet-stream", ct)

	_, _, err = encode(func() {})
	assert.Error(t, err)
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}
