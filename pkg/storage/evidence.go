package storage

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnsupportedMedia is returned when an upload is not a recognised image type.
var ErrUnsupportedMedia = errors.New("unsupported media type")

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// StoredFile describes an evidence image written to disk.
type StoredFile struct {
	Path        string
	ContentType string
	Size        int64
}

// EvidenceStorage keeps evidence photos on local disk, bucketed by day.
type EvidenceStorage struct {
	baseDir string
	now     func() time.Time
}

// NewEvidenceStorage ensures the base directory exists and returns a handle.
func NewEvidenceStorage(baseDir string) (*EvidenceStorage, error) {
	if baseDir == "" {
		baseDir = "./evidence"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence directory: %w", err)
	}
	return &EvidenceStorage{baseDir: baseDir, now: time.Now}, nil
}

// SaveImage sniffs the payload, rejects non-images and writes it under a fresh name.
func (s *EvidenceStorage) SaveImage(data []byte) (*StoredFile, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedMedia)
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}

	rel := filepath.ToSlash(filepath.Join(s.now().UTC().Format("2006/01/02"), uuid.NewString()+ext))
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare evidence directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write evidence file: %w", err)
	}
	return &StoredFile{Path: rel, ContentType: contentType, Size: int64(len(data))}, nil
}

// Read returns the stored bytes and their sniffed content type.
func (s *EvidenceStorage) Read(rel string) ([]byte, string, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read evidence file: %w", err)
	}
	return data, http.DetectContentType(data), nil
}

// Delete removes a stored file if present.
func (s *EvidenceStorage) Delete(rel string) error {
	path, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete evidence file: %w", err)
	}
	return nil
}

// resolve keeps every path inside baseDir.
func (s *EvidenceStorage) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid evidence path %q", rel)
	}
	return filepath.Join(s.baseDir, clean), nil
}

// IsUnsupportedMedia reports whether err came from a rejected upload.
func IsUnsupportedMedia(err error) bool {
	return errors.Is(err, ErrUnsupportedMedia)
}

// PNGHeader is the minimal signature recognised as image/png.
var PNGHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
