package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
	"github.com/noah-isme/civic-issue-api/pkg/storage"
)

type evidenceStorage interface {
	SaveImage(data []byte) (*storage.StoredFile, error)
	Read(rel string) ([]byte, string, error)
}

type evidenceSigner interface {
	Generate(subject, relPath string) (string, time.Time, error)
	Parse(token string) (subject, relPath string, expiresAt time.Time, err error)
}

type imageClassifier interface {
	Classify(ctx context.Context, image []byte, filename string) (*dto.ClassificationSuggestion, error)
}

// EvidenceConfig tunes evidence uploads.
type EvidenceConfig struct {
	MaxFileSize int64
	// PublicPath is the route prefix evidence tokens are served from, e.g. /api/v1/evidence.
	PublicPath string
}

// EvidenceService stores evidence photos and, when a classifier is configured, suggests how to file them.
type EvidenceService struct {
	storage    evidenceStorage
	signer     evidenceSigner
	classifier imageClassifier
	cfg        EvidenceConfig
	logger     *zap.Logger
}

// NewEvidenceService constructs an EvidenceService. classifier may be nil.
func NewEvidenceService(store evidenceStorage, signer evidenceSigner, classifier imageClassifier, cfg EvidenceConfig, logger *zap.Logger) *EvidenceService {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if cfg.PublicPath == "" {
		cfg.PublicPath = "/api/v1/evidence"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceService{storage: store, signer: signer, classifier: classifier, cfg: cfg, logger: logger}
}

// MaxFileSize returns the upload limit in bytes.
func (s *EvidenceService) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// Upload saves image and returns a signed URL for it. Classification is best effort: a classifier
// failure leaves the suggestion empty and never fails the upload.
func (s *EvidenceService) Upload(ctx context.Context, image []byte, filename, uploaderID string) (*dto.EvidenceUploadResponse, error) {
	if int64(len(image)) > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxFileSize))
	}

	stored, err := s.storage.SaveImage(image)
	if err != nil {
		if storage.IsUnsupportedMedia(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "evidence must be a JPEG, PNG, WebP or GIF image")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store evidence")
	}

	token, expiresAt, err := s.signer.Generate(uploaderID, stored.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign evidence url")
	}

	resp := &dto.EvidenceUploadResponse{
		ImageURL:    strings.TrimRight(s.cfg.PublicPath, "/") + "/" + url.PathEscape(token),
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		ContentType: stored.ContentType,
	}

	if s.classifier != nil {
		suggestion, err := s.classifier.Classify(ctx, image, filename)
		if err != nil {
			s.logger.Info("evidence stored without classification", zap.String("path", stored.Path), zap.Error(err))
		} else {
			resp.Suggestion = suggestion
		}
	}
	return resp, nil
}

// Open resolves a signed evidence token to the image bytes and content type.
func (s *EvidenceService) Open(token string) ([]byte, string, error) {
	_, rel, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "evidence link is invalid or expired")
	}
	data, contentType, err := s.storage.Read(rel)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "evidence not found")
	}
	return data, contentType, nil
}
