package keys

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWKSJSON_PublicOnly(t *testing.T) {
	data, err := JWKSJSON()
	require.NoError(t, err)

	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, Kid(), doc.Keys[0]["kid"])
	assert.Equal(t, "RSA", doc.Keys[0]["kty"])
	assert.NotContains(t, doc.Keys[0], "d", "private exponent must not be published")
}

func TestIssue_VerifiesWithPlatformKey(t *testing.T) {
	signed, err := Issue(TeacherToken{
		Issuer:   "https://classroom.test",
		Audience: "https://classroom.test/api",
		Subject:  "teacher-1",
		Email:    "lan@school.test",
		Scopes:   []string{"classes", "classes.readonly"},
		TTL:      time.Minute,
	})
	require.NoError(t, err)

	tok, err := jwt.ParseString(signed,
		jwt.WithKey(jwa.RS256, &PrivateKey().PublicKey),
		jwt.WithValidate(true),
		jwt.WithAudience("https://classroom.test/api"),
	)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", tok.Subject())
	scope, _ := tok.Get("scope")
	assert.Equal(t, "classes classes.readonly", scope)
	email, _ := tok.Get("email")
	assert.Equal(t, "lan@school.test", email)

	set, err := PublicKeySet()
	require.NoError(t, err)
	_, err = jwt.ParseString(signed, jwt.WithKeySet(set), jwt.WithAudience("https://classroom.test/api"))
	assert.NoError(t, err, "kid header lets the public set find the key")
}

func TestIssue_ExpiredTokenRejected(t *testing.T) {
	signed, err := Issue(TeacherToken{Issuer: "i", Audience: "a", Subject: "s", TTL: -time.Hour})
	require.NoError(t, err)

	_, err = jwt.ParseString(signed, jwt.WithKey(jwa.RS256, &PrivateKey().PublicKey), jwt.WithValidate(true))
	assert.Error(t, err)
}
