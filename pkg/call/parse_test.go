package call

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zep-us/callbridge/pkg/engine"
)

func TestParseBytes(t *testing.T) {
	ok := ParseBytes(&engine.Response{StatusCode: http.StatusOK, Body: []byte("raw")})
	require.True(t, ok.IsSuccess())
	assert.Equal(t, []byte("raw"), ok.Body())
	assert.Nil(t, ok.Error())

	bad := ParseBytes(&engine.Response{StatusCode: http.StatusNotFound, Body: []byte("missing")})
	require.False(t, bad.IsSuccess())
	assert.Equal(t, http.StatusNotFound, bad.Error().Code)
	assert.Equal(t, "Not Found", bad.Error().Msg)
	assert.Equal(t, []byte("missing"), bad.Error().Body)
}

func TestParseJSON(t *testing.T) {
	type item struct {
		Name string `json:"name"`
	}

	ok := ParseJSON[item](&engine.Response{StatusCode: http.StatusOK, Body: []byte(`{"name":"a"}`)})
	require.True(t, ok.IsSuccess())
	assert.Equal(t, item{Name: "a"}, ok.Body())

	malformed := ParseJSON[item](&engine.Response{StatusCode: http.StatusOK, Body: []byte(`{`)})
	require.False(t, malformed.IsSuccess())
	assert.Equal(t, "malformed response body", malformed.Error().Msg)
	assert.Error(t, malformed.Error().Cause)

	status := ParseJSON[item](&engine.Response{StatusCode: 599})
	require.False(t, status.IsSuccess())
	assert.Equal(t, "unexpected status", status.Error().Msg)
}

func TestFailureFromError(t *testing.T) {
	canceled := FailureFromError(fmt.Errorf("%w: boom", engine.ErrCanceled))
	assert.Equal(t, "request canceled", canceled.Msg)

	deadline := FailureFromError(context.DeadlineExceeded)
	assert.Equal(t, "request timed out", deadline.Msg)

	netTimeout := FailureFromError(timeoutErr{})
	assert.Equal(t, "request timed out", netTimeout.Msg)

	other := errors.New("connection refused")
	generic := FailureFromError(other)
	assert.Equal(t, "network error", generic.Msg)
	assert.ErrorIs(t, generic, other)
	assert.Equal(t, 0, generic.Code)
}

func TestHTTPError_Error(t *testing.T) {
	cause := errors.New("eof")
	assert.Equal(t, "http 500: Internal Server Error: eof", (&HTTPError{Code: 500, Msg: "Internal Server Error", Cause: cause}).Error())
	assert.Equal(t, "http 404: Not Found", (&HTTPError{Code: 404, Msg: "Not Found"}).Error())
	assert.Equal(t, "network error: eof", (&HTTPError{Msg: "network error", Cause: cause}).Error())
	assert.Equal(t, "plain", (&HTTPError{Msg: "plain"}).Error())
}

func TestFailure_NilPanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilError, func() { Failure[string](nil) })
}

func TestFuncs_Defaults(t *testing.T) {
	var f Funcs[string]
	c := New[string](newFakeDelegate(), &manualExecutor{}, nil)

	// optional hooks are no-ops, Parse is mandatory
	f.OnStart(c)
	f.OnSuccess(c, "x")
	f.OnError(c, &HTTPError{Msg: "x"})
	f.OnCompleted(c, nil, false)
	assert.Nil(t, f.ParseResponse(c, &engine.Response{StatusCode: http.StatusOK}))
	assert.Equal(t, "network error", f.ParseFailure(c, errors.New("x")).Msg)
}

func TestFuncs_FailureOverride(t *testing.T) {
	c := New[string](newFakeDelegate(), &manualExecutor{}, nil)
	f := Funcs[string]{
		Failure: func(_ *Call[string], err error) *HTTPError {
			return &HTTPError{Code: 499, Msg: "custom", Cause: err}
		},
	}

	cause := errors.New("boom")
	got := f.ParseFailure(c, cause)
	assert.Equal(t, 499, got.Code)
	assert.Equal(t, "custom", got.Msg)
	assert.ErrorIs(t, got, cause)
}

func TestFactory(t *testing.T) {
	_, err := NewFactory(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilExecutor)

	exec := &manualExecutor{}
	f, err := NewFactory(nil, exec, nil)
	require.NoError(t, err)
	assert.Same(t, exec, f.Executor())

	_, err = NewCall[string](f, http.MethodGet, "/", nil, nil)
	assert.Error(t, err)

	d := newFakeDelegate()
	c := Adapt[string](f, d)
	assert.Same(t, d.Request(), c.Request())
}
