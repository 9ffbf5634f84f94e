package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		{Kind: KindGet, Key: "hello"},
		{Kind: KindSet, Key: "hello", Value: "world"},
		{Kind: KindRemove, Key: "hello"},
		{Kind: KindSet, Key: "", Value: ""},
		{Kind: KindSet, Key: "unicode-key-é", Value: strings.Repeat("v", 10000)},
	}
	for _, req := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteRequest(&buf, req))
		got, err := ReadRequest(&buf)
		require.NoError(t, err)
		require.Equal(t, req, got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		{Status: StatusOK},
		{Status: StatusFound, Value: "world"},
		{Status: StatusNotFound},
		{Status: StatusErr, Message: "Key not found"},
	}
	for _, resp := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteResponse(&buf, resp))
		got, err := ReadResponse(&buf)
		require.NoError(t, err)
		require.Equal(t, resp, got)
	}
}

func TestReadRequestDetectsFramingError(t *testing.T) {
	_, err := ReadRequest(bytes.NewReader([]byte{99}))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrProtocol))
}

func TestReadRequestDetectsTruncatedStream(t *testing.T) {
	// A well-formed kind byte followed by a key-length prefix but no key
	// bytes at all.
	_, err := ReadRequest(bytes.NewReader([]byte{byte(KindGet), 0, 0, 0, 5}))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrProtocol))
}
