package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipper/poc/classroom/be/pkg/common/keys"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("PLATFORM_ISSUER", "http://classroom.test")
	t.Setenv("AUTH_AUDIENCE", "")

	out, err := execute(t, "token", "--sub", "teacher-9", "--email", "t9@school.test", "--scope", "classes.readonly")
	require.NoError(t, err)

	set, err := keys.PublicKeySet()
	require.NoError(t, err)
	tok, err := jwt.ParseString(strings.TrimSpace(out),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer("http://classroom.test"),
		jwt.WithAudience("http://classroom.test/api"),
	)
	require.NoError(t, err)
	assert.Equal(t, "teacher-9", tok.Subject())
	scope, _ := tok.Get("scope")
	assert.Equal(t, "classes.readonly", scope)
	email, _ := tok.Get("email")
	assert.Equal(t, "t9@school.test", email)
}

func TestTokenCmd_RequiresSubject(t *testing.T) {
	_, err := execute(t, "token")
	assert.Error(t, err)
}

func TestGenAICheckCmd_RequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := execute(t, "genai-check", "-q")
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
