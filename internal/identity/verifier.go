package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized covers every credential failure at the handshake boundary:
// missing or malformed tokens, bad signatures, expired claims, and uid
// mismatches. Connections failing with it never reach session logic.
var ErrUnauthorized = errors.New("identity: unauthorized")

// VerifiedUser is the outcome of a successful credential check.
type VerifiedUser struct {
	UID   string
	Email string
}

// Verifier validates a bearer credential with the external identity provider.
type Verifier interface {
	Verify(token string) (VerifiedUser, error)
}

// VerifierFunc adapts functions into the Verifier interface.
type VerifierFunc func(token string) (VerifiedUser, error)

func (f VerifierFunc) Verify(token string) (VerifiedUser, error) {
	return f(token)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWTVerifier checks HS256-signed access tokens issued by the auth provider.
// The subject claim carries the uid and the email claim the login address.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret, now: time.Now}
}

func (v *JWTVerifier) Verify(token string) (VerifiedUser, error) {
	if len(v.secret) == 0 {
		return VerifiedUser{}, fmt.Errorf("%w: no verification key configured", ErrUnauthorized)
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return VerifiedUser{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return VerifiedUser{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}

	return VerifiedUser{UID: claims.Subject, Email: claims.Email}, nil
}

// Credentials carries the raw handshake material for one connection.
type Credentials struct {
	Token    string // bearer token; empty for guest attempts
	UID      string // connection-declared uid
	Username string // client-supplied display name, used for guests
}

// Resolver turns handshake credentials into a registered Identity.
type Resolver struct {
	verifier    Verifier
	registry    *Registry
	allowGuests bool
}

func NewResolver(verifier Verifier, registry *Registry, allowGuests bool) *Resolver {
	return &Resolver{verifier: verifier, registry: registry, allowGuests: allowGuests}
}

// Resolve validates the credential and registers the resulting Identity for
// the connection's lifetime. Guests are admitted only when enabled and must
// still declare an ephemeral uid. A verified token whose subject does not
// match the declared uid is refused.
func (r *Resolver) Resolve(creds Credentials) (Identity, error) {
	if creds.Token == "" {
		if r.allowGuests && creds.UID != "" {
			name := creds.Username
			if name == "" {
				name = "Guest"
			}
			id := Identity{
				UID:         creds.UID,
				DisplayName: name,
				Email:       fmt.Sprintf("%s@guest.local", name),
				IsGuest:     true,
			}
			r.registry.Add(id)
			return id, nil
		}
		return Identity{}, fmt.Errorf("%w: missing access token or uid", ErrUnauthorized)
	}
	if creds.UID == "" {
		return Identity{}, fmt.Errorf("%w: missing uid", ErrUnauthorized)
	}

	user, err := r.verifier.Verify(creds.Token)
	if err != nil {
		return Identity{}, err
	}
	if user.UID != creds.UID {
		return Identity{}, fmt.Errorf("%w: uid mismatch", ErrUnauthorized)
	}

	id := Identity{
		UID:         user.UID,
		DisplayName: displayNameFromEmail(user.Email),
		Email:       user.Email,
	}
	r.registry.Add(id)
	return id, nil
}
