package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePairsRoundTrip(t *testing.T) {
	pairs := []Pair{
		{Key: "maxCheckAttempts", Value: "3"},
		{Key: "timeout", Value: "60"},
		{Key: "path", Value: "/usr/libexec/argo-monitoring/probes"},
	}

	encoded := EncodePairs(pairs)
	decoded, err := DecodePairs(encoded)
	require.NoError(t, err)
	assert.Equal(t, pairs, decoded)
}

func TestDecodePairsFirstSpaceOnly(t *testing.T) {
	decoded, err := DecodePairs(`["ARGO_PROFILE -p TEST_PROFILE --flag x"]`)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "ARGO_PROFILE", decoded[0].Key)
	assert.Equal(t, "-p TEST_PROFILE --flag x", decoded[0].Value)
}

func TestDecodePairsValueMayBeEmpty(t *testing.T) {
	decoded, err := DecodePairs(`["NOHOSTNAME 1","PASSIVE"]`)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, Pair{Key: "PASSIVE", Value: ""}, decoded[1])
}

func TestEncodePairsEmptyListIsEmptyString(t *testing.T) {
	assert.Equal(t, "", EncodePairs(nil))
	assert.Equal(t, "", EncodePairs([]Pair{}))

	// A UI placeholder row with no key is dropped, and dropping the last
	// entry falls back to the empty-string convention, not "[]".
	assert.Equal(t, "", EncodePairs([]Pair{{Key: "", Value: "orphan"}}))
}

func TestDecodePairsEmptyStringIsEmptyList(t *testing.T) {
	decoded, err := DecodePairs("")
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodePairsMalformedFailsLoud(t *testing.T) {
	_, err := DecodePairs(`{"not": "a list"}`)
	assert.Error(t, err)
}

func TestDecodeOne(t *testing.T) {
	v, err := DecodeOne(`["check_http"]`)
	require.NoError(t, err)
	assert.Equal(t, "check_http", v)

	v, err = DecodeOne("")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = DecodeOne("[]")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestEncodeOne(t *testing.T) {
	assert.Equal(t, `["check_http"]`, EncodeOne("check_http"))
	assert.Equal(t, "", EncodeOne(""))
}

func TestParseProbeVersion(t *testing.T) {
	name, version, ok := ParseProbeVersion("check_http (2.3.2)")
	require.True(t, ok)
	assert.Equal(t, "check_http", name)
	assert.Equal(t, "2.3.2", version)

	_, _, ok = ParseProbeVersion("")
	assert.False(t, ok)

	_, _, ok = ParseProbeVersion("passive-metric-no-probe")
	assert.False(t, ok)
}
