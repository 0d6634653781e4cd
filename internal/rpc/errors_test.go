package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jason-s-yu/shootingstars/internal/auth"
	"github.com/jason-s-yu/shootingstars/internal/ratelimit"
	"github.com/jason-s-yu/shootingstars/internal/schema"
	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireError(t *testing.T) {
	cases := []struct {
		err    error
		kind   Kind
		status int
	}{
		{&schema.Violation{Path: "input", Reason: "must be a string"}, KindInvalidPayload, http.StatusBadRequest},
		{fmt.Errorf("authorize: %w", auth.ErrUnauthorized), KindUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("light 42: %w", store.ErrNotFound), KindNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: retry", ratelimit.ErrLimited), KindRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: x", ErrUnknownMethod), KindUnknownMethod, http.StatusNotFound},
		{errors.New("disk on fire"), KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		we := WireError(tc.err)
		require.NotNil(t, we)
		assert.Equal(t, tc.kind, we.Kind, tc.err.Error())
		assert.Equal(t, tc.status, we.Kind.HTTPStatus())
	}
	assert.Nil(t, WireError(nil))
	assert.Equal(t, "internal server error", WireError(errors.New("secret detail")).Reason)
	assert.Equal(t, "input must be a string", WireError(&schema.Violation{Path: "input", Reason: "must be a string"}).Reason)
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	r.Method("echo", func(_ context.Context, _ Caller, params []json.RawMessage) (any, error) {
		return len(params), nil
	})
	r.Publication("things", func(context.Context, Caller, []json.RawMessage) ([]Cursor, error) {
		return []Cursor{{Collection: "things"}}, nil
	})

	out, err := r.Call(context.Background(), Caller{}, "echo", []json.RawMessage{json.RawMessage(`1`)})
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	_, err = r.Call(context.Background(), Caller{}, "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)

	cursors, err := r.Subscribe(context.Background(), Caller{}, "things", nil)
	require.NoError(t, err)
	assert.Equal(t, "things", cursors[0].Collection)

	_, err = r.Subscribe(context.Background(), Caller{}, "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.Equal(t, []string{"echo"}, r.Methods())
}

func TestCursorProjectAndFilter(t *testing.T) {
	c := Cursor{
		Collection: "presence",
		Fields:     []string{"id", "config"},
		Filter:     func(key string, _ map[string]any) bool { return key != "1" },
	}
	doc := map[string]any{"id": 2, "config": "x", "secret": true}
	assert.Equal(t, map[string]any{"id": 2, "config": "x"}, c.Project(doc))
	assert.True(t, c.Visible("2", doc))
	assert.False(t, c.Visible("1", doc))
	assert.True(t, Cursor{}.Visible("1", nil))
}
