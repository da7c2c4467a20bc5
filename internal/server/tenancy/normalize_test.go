package tenancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saasgate/internal/common"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SHOP.EXAMPLE.COM:8443", "shop.example.com"},
		{"  www.Example.com  ", "example.com"},
		{"example.com.", "example.com"},
		{"www.example.com.:80", "example.com"},
		{"example.com:", "example.com"},
		{"shop.example.com, proxy.internal", "shop.example.com"},
		{"[::1]:8080", "::1"},
		{"localhost", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDomain(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDomain_Malformed(t *testing.T) {
	for _, in := range []string{"", "   ", ":8080", "www.", ".", "evil.com/path", "user@host"} {
		_, err := NormalizeDomain(in)
		assert.ErrorIs(t, err, common.ErrMalformedHost, in)
	}
}
