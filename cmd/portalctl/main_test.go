package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/carelink/portal-auth/internal/pkg/envguard"
)

const completeEnv = `NEXT_PUBLIC_SUPABASE_URL=https://project.supabase.co
NEXT_PUBLIC_SUPABASE_ANON_KEY=anon
NEXT_PUBLIC_APP_URL=http://localhost:3000
NEXT_PUBLIC_PATIENTS_URL=http://localhost:3001
NEXT_PUBLIC_DOCTORS_URL=http://localhost:3002
NEXT_PUBLIC_COMPANIES_URL=http://localhost:3003
NEXT_PUBLIC_ADMIN_URL=http://localhost:3004
SUPABASE_SERVICE_ROLE_KEY=service
JWT_SECRET=jwt
JWT_REFRESH_SECRET=refresh
ENCRYPTION_KEY=enc
SESSION_SECRET=session
`

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, base map[string]string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(envconfig.MapLookuper(base), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEnvCheck_Complete(t *testing.T) {
	out, err := execute(t, nil, "env", "check", "--env-file", writeEnv(t, completeEnv))
	require.NoError(t, err)
	assert.Contains(t, out, "environment ok")
}

func TestEnvCheck_SecurityViolation(t *testing.T) {
	path := writeEnv(t, completeEnv+"NEXT_PUBLIC_JWT_SECRET=leaked\n")

	_, err := execute(t, nil, "env", "check", "--env-file", path)
	require.ErrorIs(t, err, envguard.ErrSecurityViolation)
}

func TestEnvCheck_MissingVariable(t *testing.T) {
	path := writeEnv(t, strings.Replace(completeEnv, "NEXT_PUBLIC_DOCTORS_URL=http://localhost:3002\n", "", 1))

	_, err := execute(t, nil, "env", "check", "--env-file", path)
	require.ErrorIs(t, err, envguard.ErrMissingClientVariable)
}

func TestEnvCheck_ReadsProcessEnvironment(t *testing.T) {
	path := writeEnv(t, completeEnv)

	_, err := execute(t, map[string]string{"NEXT_PUBLIC_ENCRYPTION_KEY": "leaked"}, "env", "check", "--env-file", path)
	require.ErrorIs(t, err, envguard.ErrSecurityViolation)
}

func TestEnvCheck_MissingFile(t *testing.T) {
	_, err := execute(t, nil, "env", "check", "--env-file", filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
}

func TestRoles_YAML(t *testing.T) {
	out, err := execute(t, nil, "roles")
	require.NoError(t, err)

	var doc struct {
		Roles []roleEntry `yaml:"roles"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Roles, 4)

	byRole := map[string]roleEntry{}
	for _, r := range doc.Roles {
		byRole[string(r.Role)] = r
	}
	assert.Equal(t, "doctors", string(byRole["doctor"].Portal))
	assert.Equal(t, "/admin/dashboard", byRole["platform_admin"].Home)
	assert.False(t, byRole["platform_admin"].Selectable)
	assert.True(t, byRole["patient"].Selectable)
}
