package creds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAuthToken, EnvCT0, EnvCookies, EnvAltAuthToken, EnvAltCT0, EnvAltCookies} {
		t.Setenv(key, "")
	}
}

func TestResolveDiscreteTokens(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAuthToken, "tok")
	t.Setenv(EnvCT0, "csrf")

	creds, warnings, err := Resolve()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "tok", creds.AuthToken)
	assert.Equal(t, "csrf", creds.CT0)
	assert.Equal(t, EnvAuthToken, creds.Source)
}

func TestResolvePrimaryWinsOverAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAuthToken, "primary")
	t.Setenv(EnvCT0, "primary-csrf")
	t.Setenv(EnvAltAuthToken, "alias")
	t.Setenv(EnvAltCT0, "alias-csrf")

	creds, _, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "primary", creds.AuthToken)
}

func TestResolvePartialPairIsSkippedWithWarning(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAuthToken, "only-auth")
	t.Setenv(EnvAltAuthToken, "alias-auth")
	t.Setenv(EnvAltCT0, "alias-csrf")

	creds, warnings, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "alias-auth", creds.AuthToken)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], EnvAuthToken)
}

func TestResolveRawCookieHeader(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCookies, "guest_id=abc; auth_token=tok-from-cookie; ct0=csrf-from-cookie; lang=en")

	creds, _, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "tok-from-cookie", creds.AuthToken)
	assert.Equal(t, "csrf-from-cookie", creds.CT0)
	assert.Equal(t, EnvCookies, creds.Source)
}

func TestResolveNothingSet(t *testing.T) {
	clearEnv(t)
	_, _, err := Resolve()
	require.Error(t, err)
}

func TestFromRawCookiesMissingPair(t *testing.T) {
	_, err := FromRawCookies("guest_id=abc; lang=en")
	require.Error(t, err)

	_, err = FromRawCookies("auth_token=only")
	require.Error(t, err)
}
