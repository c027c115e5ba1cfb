package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/calvora/postpilot/internal/models"
	"github.com/calvora/postpilot/internal/repository"
)

const (
	maxApiKeysPerWorkspace = 5
	apiKeyBytes            = 16
)

type ApiKeyService interface {
	Create(ctx context.Context, workspaceID int64, keyName string) error
	List(ctx context.Context, workspaceID int64) ([]*models.ApiKey, error)
	GetWorkspaceID(ctx context.Context, apiKey string) (int64, error)
	Remove(ctx context.Context, workspaceID, keyID int64) error
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{k: k}
}

func (s *apiKeyService) Create(ctx context.Context, workspaceID int64, keyName string) error {
	keys, err := s.k.GetByWorkspaceID(ctx, workspaceID)
	if err != nil {
		return err
	}

	if len(keys) >= maxApiKeysPerWorkspace {
		err = fmt.Errorf("only %d API keys can be created", maxApiKeysPerWorkspace)
		slog.Info(err.Error())
		return err
	}

	key, err := generateApiKey()
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("error generating API key")
	}

	apiKey := &models.ApiKey{
		WorkspaceID: workspaceID,
		KeyName:     keyName,
		ApiKey:      key,
	}

	if _, err = s.k.Create(ctx, apiKey); err != nil {
		return fmt.Errorf("error saving API key")
	}
	return nil
}

func generateApiKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (s *apiKeyService) GetWorkspaceID(ctx context.Context, apiKey string) (int64, error) {
	workspaceID, exists, err := s.k.GetByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, errors.New("key doesn't exist")
	}
	return *workspaceID, nil
}

func (s *apiKeyService) List(ctx context.Context, workspaceID int64) ([]*models.ApiKey, error) {
	apiKeys, err := s.k.GetByWorkspaceID(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("error getting API keys")
	}
	return apiKeys, nil
}

func (s *apiKeyService) Remove(ctx context.Context, workspaceID, keyID int64) error {
	if workspaceID == 0 || keyID == 0 {
		err := errors.New("key id is not valid")
		slog.Info(err.Error())
		return err
	}

	keys, err := s.k.GetByWorkspaceID(ctx, workspaceID)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if key.ID == keyID {
			return s.k.Remove(ctx, keyID)
		}
	}

	err = errors.New("key doesn't exist")
	slog.Info(err.Error())
	return err
}
