package netutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsInAddrAny(t *testing.T) {
	for _, host := range []string{"", "0.0.0.0", "::"} {
		require.True(t, IsInAddrAny(host), host)
	}
	for _, host := range []string{"10.0.1.1", "::1", "server-1.example.com"} {
		require.False(t, IsInAddrAny(host), host)
	}
}

func TestAdvertiseHost(t *testing.T) {
	require.Equal(t, "10.0.1.1", AdvertiseHost("10.0.1.1", "jump", "server-1"))
	require.Equal(t, "jump", AdvertiseHost("0.0.0.0", "jump", "server-1"))
	require.Equal(t, "server-1", AdvertiseHost("", "", "server-1"))
	require.Equal(t, "", AdvertiseHost("", "::"))
}

func TestJoinPort(t *testing.T) {
	require.Equal(t, "10.0.1.1:3301", JoinPort("10.0.1.1", 3301))
	require.Equal(t, "[fd00::1]:3301", JoinPort("fd00::1", 3301))
	require.Equal(t, "0.0.0.0:4401", ListenAll("4401"))
}
