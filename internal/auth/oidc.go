package auth

import (
	"context"
	"fmt"
	"strconv"

	"ms-reservation/internal/models"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCResolver verifies ID tokens of an external identity provider. The user
// id comes from a numeric "user_id" claim, falling back to a numeric subject.
type OIDCResolver struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCResolver(ctx context.Context, issuer string) (*OIDCResolver, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}

	// SkipClientIDCheck: tokens are minted for the web client, not this service
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return &OIDCResolver{verifier: verifier}, nil
}

func (o *OIDCResolver) Resolve(ctx context.Context, rawToken string) (models.Principal, error) {
	idToken, err := o.verifier.Verify(ctx, rawToken)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", models.ErrSessionInvalid, err)
	}

	var claims struct {
		Sub     string `json:"sub"`
		UserID  int64  `json:"user_id"`
		IsAdmin bool   `json:"is_admin"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return models.Principal{}, fmt.Errorf("%w: failed to parse claims", models.ErrSessionInvalid)
	}

	userID := claims.UserID
	if userID == 0 {
		userID, err = strconv.ParseInt(claims.Sub, 10, 64)
		if err != nil {
			return models.Principal{}, fmt.Errorf("%w: no numeric user id in token", models.ErrSessionInvalid)
		}
	}
	return models.Principal{UserID: userID, IsAdmin: claims.IsAdmin}, nil
}
