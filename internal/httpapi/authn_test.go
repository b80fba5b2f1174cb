package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{header: "Bearer abc.def.ghi", token: "abc.def.ghi"},
		{header: "bearer   abc", token: "abc"},
		{header: "  BEARER xyz  ", token: "xyz"},
		{header: "", err: errNoToken},
		{header: "Bearer", err: errNoToken},
		{header: "Bearer   ", err: errNoToken},
		{header: "Basic dXNlcjpwdw==", err: errNotBearer},
		{header: "Bear abc", err: errNotBearer},
	}
	for _, tc := range tests {
		got, err := bearerToken(tc.header)
		assert.ErrorIs(t, err, tc.err, tc.header)
		assert.Equal(t, tc.token, got, tc.header)
	}
}
