package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientOptionsFromURL(t *testing.T) {
	opts, prefix, err := ClientOptionsFromURL("mqtt://broker.local:1883/neurobot/")
	require.NoError(t, err)
	require.Equal(t, "neurobot/", prefix)
	require.Len(t, opts.Servers, 1)
	require.Equal(t, "tcp", opts.Servers[0].Scheme)
	require.Equal(t, "broker.local:1883", opts.Servers[0].Host)

	opts, prefix, err = ClientOptionsFromURL("tcps://user:pw@broker:8883/a/b/?client-id=rig1")
	require.NoError(t, err)
	require.Equal(t, "a/b/", prefix)
	require.Equal(t, "tcps", opts.Servers[0].Scheme)
	require.Equal(t, "user", opts.Username)
	require.Equal(t, "pw", opts.Password)
	require.Equal(t, "rig1", opts.ClientID)

	_, _, err = ClientOptionsFromURL("://bad")
	require.Error(t, err)
}
