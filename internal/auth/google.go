package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kjstillabower/plants-doctor/internal/models"
)

// Issuers Google signs ID tokens with.
var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Verifier checks a federated ID token and returns the identity it asserts.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (models.User, error)
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier verifies Google Identity Services ID tokens: RS256 signature
// against the published keys, audience equal to the OAuth client ID, a Google
// issuer, and an expiry.
type GoogleVerifier struct {
	clientID string
	keys     keyfunc.Keyfunc
	issuers  []string
}

func NewGoogleVerifier(clientID string, keys keyfunc.Keyfunc) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, keys: keys, issuers: googleIssuers}
}

func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (models.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return models.User{}, fmt.Errorf("%w: missing credential", ErrFederatedSignIn)
	}
	if v.clientID == "" || v.keys == nil {
		return models.User{}, fmt.Errorf("%w: client ID not configured", ErrFederatedSignIn)
	}

	claims := &googleClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, v.keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrFederatedSignIn, err)
	}

	if !contains(v.issuers, claims.Issuer) {
		return models.User{}, fmt.Errorf("%w: unexpected issuer %q", ErrFederatedSignIn, claims.Issuer)
	}
	if claims.Email == "" {
		return models.User{}, fmt.Errorf("%w: token has no email", ErrFederatedSignIn)
	}
	if !claims.EmailVerified {
		return models.User{}, fmt.Errorf("%w: email not verified", ErrFederatedSignIn)
	}

	user := models.User{Name: claims.Name, Email: claims.Email, Picture: claims.Picture}
	if user.Name == "" {
		user.Name = localPart(user.Email)
	}
	if user.Picture == "" {
		user.Picture = models.AvatarURL(user.Email)
	}
	return user, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
