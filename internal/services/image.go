package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/imaging"
	"github.com/community-hub/community-hub/internal/storage"
	"github.com/google/uuid"
)

// ImageService validates uploads, renders thumbnails and stores both
type ImageService struct {
	store   *repositories.Store
	backend storage.Storage
	cfg     config.StorageConfig
}

func NewImageService(store *repositories.Store, backend storage.Storage, cfg config.StorageConfig) *ImageService {
	return &ImageService{store: store, backend: backend, cfg: cfg}
}

// UploadedImage is an image with short-lived download URLs
type UploadedImage struct {
	*models.Image
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Upload stores an image for userID in communityID. The content type is
// sniffed from the bytes; the client's declared type is ignored.
func (s *ImageService) Upload(ctx context.Context, communityID, userID string, r io.Reader) (*UploadedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, apperr.TooLarge("file_too_large", s.cfg.MaxUploadBytes)
	}
	contentType, ext, err := imaging.DetectType(data)
	if err != nil {
		return nil, apperr.BadRequest("unsupported_media_type")
	}
	processed, err := imaging.Process(data, s.cfg.ThumbnailWidth)
	if err != nil {
		return nil, apperr.BadRequest("unsupported_media_type").Wrap(err)
	}

	id := uuid.New().String()
	path := fmt.Sprintf("images/%s/%s%s", communityID, id, ext)
	thumbPath := fmt.Sprintf("images/%s/%s_thumb.jpg", communityID, id)

	res, err := s.backend.Put(ctx, path, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if _, err := s.backend.Put(ctx, thumbPath, bytes.NewReader(processed.Thumbnail), int64(len(processed.Thumbnail)), "image/jpeg"); err != nil {
		s.cleanup(ctx, path)
		return nil, apperr.Internal(err)
	}

	img := &models.Image{
		ID:            id,
		CommunityID:   &communityID,
		UploadedBy:    userID,
		Path:          path,
		ThumbnailPath: thumbPath,
		ContentType:   contentType,
		Size:          res.Size,
		Checksum:      res.Checksum,
		Width:         processed.Width,
		Height:        processed.Height,
	}
	if err := s.store.Images().Create(ctx, img); err != nil {
		s.cleanup(ctx, path, thumbPath)
		return nil, err
	}
	slog.InfoContext(ctx, "image uploaded", "community_id", communityID, "image_id", id, "size", res.Size)
	return s.withURLs(ctx, img)
}

// GetImage returns an image of the community with fresh URLs
func (s *ImageService) GetImage(ctx context.Context, communityID, imageID string) (*UploadedImage, error) {
	img, err := s.store.Images().GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if img == nil || img.CommunityID == nil || *img.CommunityID != communityID {
		return nil, apperr.NotFound(codeNotFound)
	}
	return s.withURLs(ctx, img)
}

func (s *ImageService) withURLs(ctx context.Context, img *models.Image) (*UploadedImage, error) {
	url, err := s.backend.SignedURL(ctx, img.Path, s.cfg.SignedURLTTL)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	thumb, err := s.backend.SignedURL(ctx, img.ThumbnailPath, s.cfg.SignedURLTTL)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &UploadedImage{Image: img, URL: url, ThumbnailURL: thumb}, nil
}

func (s *ImageService) cleanup(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := s.backend.Delete(ctx, p); err != nil {
			slog.WarnContext(ctx, "failed to remove orphaned upload", "path", p, "error", err)
		}
	}
}
