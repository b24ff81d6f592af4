package envguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvironment_Scenario(t *testing.T) {
	g := newGuard(t, baseEnv())

	cfg, err := g.ValidateEnvironment()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://x", cfg.Client.Supabase.URL)
	assert.Equal(t, "anon", cfg.Client.Supabase.AnonKey)
	assert.Equal(t, "abc", cfg.Server.JWT.Secret)
	assert.Equal(t, "def", cfg.Server.JWT.RefreshSecret)
	assert.Equal(t, "svc", cfg.Server.Supabase.ServiceRoleKey)
	assert.Equal(t, "ghi", cfg.Server.EncryptionKey)
	assert.Equal(t, "jkl", cfg.Server.SessionSecret)
	assert.Equal(t, "http://localhost:3002", cfg.Client.Portals.Doctors)
	assert.Equal(t, DefaultCookieDomain, cfg.Client.CookieDomain)

	_, err = g.ValidateSecurity()
	require.NoError(t, err)
}

func TestValidateEnvironment_CookieDomainOverride(t *testing.T) {
	env := baseEnv()
	env[EnvCookieDomain] = ".carelink.health"
	cfg, err := newGuard(t, env).ValidateEnvironment()
	require.NoError(t, err)
	assert.Equal(t, ".carelink.health", cfg.Client.CookieDomain)
}

func TestValidateEnvironment_FailsFastOnMissingKey(t *testing.T) {
	for _, key := range []string{EnvSupabaseAnonKey, EnvCompaniesURL, EnvJWTRefreshSecret, EnvSessionSecret} {
		env := baseEnv()
		delete(env, key)

		cfg, err := newGuard(t, env).ValidateEnvironment()
		assert.Nil(t, cfg, "no partial config on failure")
		require.Error(t, err)

		var ve *VarError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, key, ve.Name)
	}
}

func TestValidateEnvironment_MissingKindsByScope(t *testing.T) {
	env := baseEnv()
	delete(env, EnvAppURL)
	_, err := newGuard(t, env).ValidateEnvironment()
	require.ErrorIs(t, err, ErrMissingClientVariable)

	env = baseEnv()
	delete(env, EnvEncryptionKey)
	_, err = newGuard(t, env).ValidateEnvironment()
	require.ErrorIs(t, err, ErrMissingServerVariable)
}

func TestValidateEnvironment_MalformedURL(t *testing.T) {
	env := baseEnv()
	env[EnvDoctorsURL] = "not a url"

	_, err := newGuard(t, env).ValidateEnvironment()
	require.ErrorIs(t, err, ErrMalformedEnvironment)

	var ve *VarError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, EnvDoctorsURL, ve.Name)
}
