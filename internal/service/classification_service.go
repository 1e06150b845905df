package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

const fallbackClassificationTitle = "Civic Issue Detected"

var labelCategories = map[string]models.IssueCategory{
	"pothole":                    models.CategoryRoad,
	"improper speedbreaker":      models.CategoryRoad,
	"traffic signal issue":       models.CategoryRoad,
	"garbage":                    models.CategorySanitation,
	"sewage overflow":            models.CategorySanitation,
	"broken streetlight":         models.CategoryStreetlight,
	"waterlogging":               models.CategoryWater,
	"drainage blockage":          models.CategoryDrainage,
	"water pipe leakage":         models.CategoryWater,
	"plastic pollution in water": models.CategoryWater,
	"damaged bridge":             models.CategoryRoad,
	"damaged footpath":           models.CategoryRoad,
}

// CategoryForLabel maps a classifier label onto an issue category. Unknown labels map to other.
func CategoryForLabel(label string) models.IssueCategory {
	if category, ok := labelCategories[strings.ToLower(strings.TrimSpace(label))]; ok {
		return category
	}
	return models.CategoryOther
}

type classifierResponse struct {
	Caption    string  `json:"caption"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

// ClassificationConfig points the client at the classifier endpoint.
type ClassificationConfig struct {
	URL     string
	Timeout time.Duration
}

// ClassificationService asks the external image classifier what an evidence photo shows.
type ClassificationService struct {
	client  *http.Client
	url     string
	metrics *MetricsService
	logger  *zap.Logger
}

// NewClassificationService constructs a ClassificationService.
func NewClassificationService(cfg ClassificationConfig, metrics *MetricsService, logger *zap.Logger) *ClassificationService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassificationService{
		client:  &http.Client{Timeout: cfg.Timeout},
		url:     cfg.URL,
		metrics: metrics,
		logger:  logger,
	}
}

// Classify uploads image as multipart field "image" and converts the reply into a form suggestion.
// Any transport, status or decoding failure is reported as an external service error.
func (s *ClassificationService) Classify(ctx context.Context, image []byte, filename string) (*dto.ClassificationSuggestion, error) {
	if filename == "" {
		filename = "evidence.jpg"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, s.fail(err, "failed to build classification request")
	}
	if _, err := part.Write(image); err != nil {
		return nil, s.fail(err, "failed to build classification request")
	}
	if err := writer.Close(); err != nil {
		return nil, s.fail(err, "failed to build classification request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return nil, s.fail(err, "failed to build classification request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.fail(err, "classification service unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, s.fail(err, "failed to read classification response")
	}

	var payload classifierResponse
	_ = json.Unmarshal(raw, &payload)
	if resp.StatusCode != http.StatusOK {
		msg := payload.Error
		if msg == "" {
			msg = fmt.Sprintf("classification service returned %d", resp.StatusCode)
		}
		return nil, s.fail(fmt.Errorf("status %d", resp.StatusCode), msg)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, s.fail(err, "invalid classification response")
	}

	s.metrics.RecordClassification("ok")
	label := strings.TrimSpace(payload.Category)
	title := label
	if title == "" {
		title = fallbackClassificationTitle
	}
	return &dto.ClassificationSuggestion{
		Category:    CategoryForLabel(label),
		Title:       title,
		Description: strings.TrimSpace(payload.Caption),
		Label:       label,
		Confidence:  payload.Confidence,
	}, nil
}

func (s *ClassificationService) fail(err error, message string) error {
	s.metrics.RecordClassification("failed")
	s.logger.Warn("image classification failed", zap.String("reason", message), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, message)
}
