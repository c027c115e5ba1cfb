package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/calvora/postpilot/internal/models"
	"github.com/calvora/postpilot/internal/repository"
	"github.com/calvora/postpilot/internal/rules"
)

// MediaService resolves media descriptors for the rules engine and
// publish payloads, and registers uploaded assets.
type MediaService interface {
	Upload(ctx context.Context, workspaceID int64, files []*multipart.FileHeader) ([]*models.MediaAsset, error)
	ResolveDescriptors(ctx context.Context, ids []int64) (map[int64]rules.Media, error)
}

type mediaService struct {
	ma repository.MediaAssetRepository
	r2 *R2Service
}

func NewMediaService(ma repository.MediaAssetRepository, r2 *R2Service) MediaService {
	return &mediaService{ma: ma, r2: r2}
}

var allowedUploadTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "pdf": {},
}

func (s *mediaService) Upload(ctx context.Context, workspaceID int64, files []*multipart.FileHeader) ([]*models.MediaAsset, error) {
	var assets []*models.MediaAsset

	for _, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}

		fileBytes, err := io.ReadAll(fileContent)
		fileContent.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return nil, fmt.Errorf("unsupported file type: %w", err)
		}
		if _, ok := allowedUploadTypes[fileType.Extension]; !ok {
			return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		key, err := gonanoid.New()
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}

		if err := s.r2.Upload(ctx, key, fileBytes, fileType.MIME.Value); err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}

		asset := &models.MediaAsset{
			WorkspaceID: workspaceID,
			FileName:    key,
			MimeType:    fileType.MIME.Value,
			FileSize:    int64(len(fileBytes)),
			FileURL:     s.r2.PublicURL(key),
		}

		assetID, err := s.ma.Create(ctx, nil, asset)
		if err != nil {
			return nil, fmt.Errorf("error saving media asset: %w", err)
		}
		asset.ID = assetID
		assets = append(assets, asset)
	}

	return assets, nil
}

// ResolveDescriptors fetches every referenced descriptor in one query
// and fails with the full list of unknown ids.
func (s *mediaService) ResolveDescriptors(ctx context.Context, ids []int64) (map[int64]rules.Media, error) {
	unique := dedupeIDs(ids)

	assets, err := s.ma.GetByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}

	var missing []string
	descriptors := make(map[int64]rules.Media, len(assets))
	for _, id := range unique {
		asset, ok := assets[id]
		if !ok {
			missing = append(missing, fmt.Sprintf("%d", id))
			continue
		}
		descriptors[id] = rules.Media{
			ID:              asset.ID,
			URL:             asset.FileURL,
			MimeType:        asset.MimeType,
			Width:           asset.Width,
			Height:          asset.Height,
			DurationSeconds: asset.DurationSeconds,
			SizeBytes:       asset.FileSize,
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown media ids: %s", strings.Join(missing, ", "))
	}
	return descriptors, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	var unique []int64
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
