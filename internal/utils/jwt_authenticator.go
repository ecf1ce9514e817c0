package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Identity is what the rest of the system knows about a verified requester.
type Identity struct {
	ExternalID  string
	Handle      *string
	DisplayName *string
	AvatarURL   *string
}

// HasHandle reports whether a social profile is linked to the identity
func (i *Identity) HasHandle() bool {
	return i != nil && i.Handle != nil && *i.Handle != ""
}

// IdentityVerifier turns a bearer token into an Identity. An invalid token yields an error.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// AuthenticatedUser holds the claims of a validated token
type AuthenticatedUser struct {
	Sub      string   `json:"sub"`
	Iss      string   `json:"iss"`
	ClientId string   `json:"client_id"`
	Exp      int64    `json:"exp"`
	Iat      int64    `json:"iat"`
	Aud      []string `json:"aud"`
	Roles    []string `json:"roles"`
	Scopes   []string `json:"scopes"`
	Handle   string   `json:"handle"`
	Name     string   `json:"name"`
	Picture  string   `json:"picture"`
}

// JwtAuthenticator validates RS256/ES256 tokens against a JWKS endpoint
type JwtAuthenticator struct {
	JwksUri  string
	Audience string

	cacheTTL  time.Duration
	client    *http.Client
	mu        sync.Mutex
	keySet    jwk.Set
	fetchedAt time.Time
}

func NewJwtAuthenticator(jwksUri string) *JwtAuthenticator {
	return &JwtAuthenticator{
		JwksUri:  jwksUri,
		cacheTTL: 5 * time.Minute,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Verify implements IdentityVerifier.
func (a *JwtAuthenticator) Verify(ctx context.Context, token string) (*Identity, error) {
	user, err := a.validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if a.Audience != "" && !contains(user.Aud, a.Audience) {
		return nil, errors.New("invalid audience")
	}

	identity := &Identity{ExternalID: user.Sub}
	if user.Handle != "" {
		identity.Handle = &user.Handle
	}
	if user.Name != "" {
		identity.DisplayName = &user.Name
	}
	if user.Picture != "" {
		identity.AvatarURL = &user.Picture
	}
	return identity, nil
}

// ValidateToken parses the token, checks its signature and time claims and maps the claims
func (a *JwtAuthenticator) ValidateToken(tokenString string) (*AuthenticatedUser, error) {
	return a.validate(context.Background(), tokenString)
}

func (a *JwtAuthenticator) validate(ctx context.Context, tokenString string) (*AuthenticatedUser, error) {
	if a.JwksUri == "" {
		return nil, errors.New("JWKS URI not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return a.fetchKey(ctx, kid)
	}, jwt.WithValidMethods([]string{"RS256", "ES256"}))
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return a.mapClaimsToUser(claims)
}

// fetchKey returns the raw public key for kid, refreshing the cached set once it expires
// or when kid is unknown.
func (a *JwtAuthenticator) fetchKey(ctx context.Context, kid string) (interface{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.keySet == nil || time.Since(a.fetchedAt) > a.cacheTTL {
		if err := a.refresh(ctx); err != nil {
			return nil, err
		}
	}

	key, ok := a.keySet.LookupKeyID(kid)
	if !ok {
		if time.Since(a.fetchedAt) < time.Second {
			return nil, fmt.Errorf("key %s not found", kid)
		}
		if err := a.refresh(ctx); err != nil {
			return nil, err
		}
		if key, ok = a.keySet.LookupKeyID(kid); !ok {
			return nil, fmt.Errorf("key %s not found", kid)
		}
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to get raw key: %w", err)
	}
	return raw, nil
}

func (a *JwtAuthenticator) refresh(ctx context.Context) error {
	set, err := jwk.Fetch(ctx, a.JwksUri, jwk.WithHTTPClient(a.client))
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	a.keySet = set
	a.fetchedAt = time.Now()
	return nil
}

func (a *JwtAuthenticator) mapClaimsToUser(claims map[string]interface{}) (*AuthenticatedUser, error) {
	user := &AuthenticatedUser{
		Sub:      stringClaim(claims, "sub"),
		Iss:      stringClaim(claims, "iss"),
		ClientId: stringClaim(claims, "client_id"),
		Exp:      int64Claim(claims, "exp"),
		Iat:      int64Claim(claims, "iat"),
		Aud:      stringSliceClaim(claims, "aud"),
		Roles:    stringSliceClaim(claims, "roles"),
		Scopes:   stringSliceClaim(claims, "scopes"),
		Name:     stringClaim(claims, "name"),
		Picture:  stringClaim(claims, "picture"),
	}

	user.Handle = stringClaim(claims, "twitter_username")
	if user.Handle == "" {
		user.Handle = stringClaim(claims, "preferred_username")
	}
	return user, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}

func int64Claim(claims map[string]interface{}, key string) int64 {
	switch v := claims[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func stringSliceClaim(claims map[string]interface{}, key string) []string {
	switch v := claims[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
