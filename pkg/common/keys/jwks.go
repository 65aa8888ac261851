package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	jwk "github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// The platform key signs teacher access tokens. It is loaded from the
// environment or generated in memory for development.
var (
	once         sync.Once
	platformJWKS jwk.Set
	signingKey   jwk.Key
	platformKid  string
	platformKey  *rsa.PrivateKey
)

func parsePrivateKey(pemBytes []byte) *rsa.PrivateKey {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k
	}
	if pkcs8, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rk, ok := pkcs8.(*rsa.PrivateKey); ok {
			return rk
		}
	}
	return nil
}

// Init ensures the signing key and JWKS are available.
func Init() error {
	var initErr error
	once.Do(func() {
		kid := os.Getenv("PLATFORM_KID")
		if kid == "" {
			kid = uuid.NewString()
		}
		platformKid = kid

		var key *rsa.PrivateKey
		if b64 := os.Getenv("PLATFORM_PRIVATE_KEY_B64"); b64 != "" {
			if der, err := base64.StdEncoding.DecodeString(b64); err == nil {
				key = parsePrivateKey(der)
			}
		}
		if key == nil {
			if pemStr := os.Getenv("PLATFORM_PRIVATE_KEY_PEM"); pemStr != "" {
				key = parsePrivateKey([]byte(pemStr))
			}
		}
		// Fallback: generate a 2048-bit RSA key for dev.
		if key == nil {
			gen, err := rsa.GenerateKey(rand.Reader, 2048)
			if err != nil {
				initErr = err
				return
			}
			key = gen
			pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(gen)})
			fmt.Println("[keys] Generated ephemeral RSA key (dev mode). Tokens minted by classroomctl only verify if both share it:")
			fmt.Printf("export PLATFORM_PRIVATE_KEY_B64='%s'\n", base64.StdEncoding.EncodeToString(pemBytes))
			fmt.Printf("export PLATFORM_KID='%s'\n", kid)
		}
		platformKey = key

		priv, err := jwk.FromRaw(key)
		if err != nil {
			initErr = err
			return
		}
		_ = priv.Set(jwk.KeyIDKey, kid)
		_ = priv.Set(jwk.AlgorithmKey, jwa.RS256)
		signingKey = priv

		pub, err := jwk.PublicKeyOf(priv)
		if err != nil {
			initErr = err
			return
		}
		_ = pub.Set(jwk.KeyIDKey, kid)
		_ = pub.Set(jwk.AlgorithmKey, jwa.RS256)
		_ = pub.Set(jwk.KeyUsageKey, "sig")

		set := jwk.NewSet()
		_ = set.AddKey(pub)
		platformJWKS = set
	})
	return initErr
}

// JWKSJSON returns the public JWKS as JSON bytes.
func JWKSJSON() ([]byte, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	return json.Marshal(platformJWKS)
}

// PublicKeySet returns the public JWKS.
func PublicKeySet() (jwk.Set, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	return platformJWKS, nil
}

// PrivateKey returns the platform signing key.
func PrivateKey() *rsa.PrivateKey {
	return platformKey
}

// Kid returns current key id.
func Kid() string { return platformKid }

// TeacherToken describes an access token to mint.
type TeacherToken struct {
	Issuer   string
	Audience string
	Subject  string
	Email    string
	Name     string
	Scopes   []string
	TTL      time.Duration
}

// Issue signs t with the platform key (RS256, kid header set).
func Issue(t TeacherToken) (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	now := time.Now()
	b := jwt.NewBuilder().
		Issuer(t.Issuer).
		Audience([]string{t.Audience}).
		Subject(t.Subject).
		IssuedAt(now).
		Expiration(now.Add(t.TTL)).
		JwtID(uuid.NewString()).
		Claim("scope", strings.Join(t.Scopes, " "))
	if t.Email != "" {
		b = b.Claim("email", t.Email)
	}
	if t.Name != "" {
		b = b.Claim("name", t.Name)
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, signingKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}
