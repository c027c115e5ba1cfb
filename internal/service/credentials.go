package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/calvora/postpilot/internal/models"
	"github.com/calvora/postpilot/internal/publisher"
	"github.com/calvora/postpilot/pkg/utils"
)

// CredentialResolver turns a stored account row into decrypted publish
// credentials. Callers resolve immediately before the platform call and
// drop the result right after.
type CredentialResolver interface {
	Resolve(ctx context.Context, acc *models.SocialAccount) (publisher.Credentials, error)
}

type credentialResolver struct {
	secretKey []byte
}

func NewCredentialResolver(secretKey string) CredentialResolver {
	return &credentialResolver{secretKey: []byte(secretKey)}
}

func (r *credentialResolver) Resolve(ctx context.Context, acc *models.SocialAccount) (publisher.Credentials, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, r.secretKey)
	if err != nil {
		slog.Info(err.Error())
		return publisher.Credentials{}, fmt.Errorf("decrypting access token for account %d: %w", acc.ID, err)
	}

	creds := publisher.Credentials{AccessToken: accessToken}

	// Some platforms carry a secondary secret (author URN, page id,
	// platform user id) alongside the token.
	if acc.AccessSecret != "" {
		secret, err := utils.Decrypt(acc.AccessSecret, r.secretKey)
		if err != nil {
			slog.Info(err.Error())
			return publisher.Credentials{}, fmt.Errorf("decrypting access secret for account %d: %w", acc.ID, err)
		}
		creds.AccessSecret = secret
	}

	return creds, nil
}
