package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint_Valid(t *testing.T) {
	e, err := ParseEndpoint("local:/home/me/docs")
	require.NoError(t, err)
	assert.Equal(t, EndpointLocal, e.Type)
	assert.Equal(t, "/home/me/docs", e.Location)
}

func TestParseEndpoint_TildeExpanded(t *testing.T) {
	t.Setenv("HOME", "/home/me")

	e, err := ParseEndpoint("local:~/docs")
	require.NoError(t, err)
	assert.Equal(t, "/home/me/docs", e.Location)
}

func TestParseEndpoint_MissingColon(t *testing.T) {
	_, err := ParseEndpoint("/home/me/docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type:location")
}

func TestParseEndpoint_EmptyLocation(t *testing.T) {
	_, err := ParseEndpoint("local:")
	require.Error(t, err)
}

func TestParseEndpoint_UnknownType(t *testing.T) {
	_, err := ParseEndpoint("s3:bucket/key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
	assert.Contains(t, err.Error(), "local")
}

func TestEndpoint_String(t *testing.T) {
	e := Endpoint{Type: EndpointLocal, Location: "/home/me/docs"}
	assert.Equal(t, "local:/home/me/docs", e.String())
}

func TestParseEndpoint_LocationWithColon(t *testing.T) {
	// SplitN with n=2 keeps everything after the first colon as the location,
	// so a Windows-style drive letter path round-trips intact.
	e, err := ParseEndpoint("local:C:/Users/me/docs")
	require.NoError(t, err)
	assert.Equal(t, "C:/Users/me/docs", e.Location)
}
