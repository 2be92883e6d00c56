package slip

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultMaxSize    = 5 * 1024 * 1024 // 5 MB
	DefaultBaseDir    = "./uploads"
	DefaultStaticBase = "/static"
)

// AllowedMimeTypes lists the accepted slip formats.
var AllowedMimeTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// Upload is a stored slip file.
type Upload struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	UserID    int64     `gorm:"column:user_id;index" json:"user_id"`
	FilePath  string    `gorm:"column:file_path" json:"-"`
	FileURL   string    `gorm:"column:file_url" json:"url"`
	MimeType  string    `gorm:"column:mime_type" json:"mime_type"`
	Size      int64     `gorm:"column:size" json:"size"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Upload) TableName() string { return "slip_uploads" }

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Upload{})
}

type Repository interface {
	Create(ctx context.Context, u *Upload) error
	GetByID(ctx context.Context, id string) (*Upload, error)
	GetByPath(ctx context.Context, filePath string) (*Upload, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *Upload) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*Upload, error) {
	var u Upload
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) GetByPath(ctx context.Context, filePath string) (*Upload, error) {
	var u Upload
	err := r.db.WithContext(ctx).Where("file_path = ?", filePath).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Upload{}).Error
}

// Store writes slip images to local disk and records them in slip_uploads.
type Store struct {
	repo       Repository
	baseDir    string
	staticBase string
	maxSize    int64
	now        func() time.Time
}

func NewStore(repo Repository, baseDir, staticBase string, maxSize int64) *Store {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	if staticBase == "" {
		staticBase = DefaultStaticBase
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		repo:       repo,
		baseDir:    baseDir,
		staticBase: strings.TrimRight(staticBase, "/"),
		maxSize:    maxSize,
		now:        time.Now,
	}
}

// BaseDir is where files are written.
func (s *Store) BaseDir() string { return s.baseDir }

// Decode turns a data URL ("data:image/png;base64,...") or bare base64 into bytes.
func Decode(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrEmptyImage
	}
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 || !strings.Contains(encoded[:comma], ";base64") {
			return nil, ErrInvalidEncoding
		}
		encoded = encoded[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// Save stores data for userID and returns the upload record with its public URL.
func (s *Store) Save(ctx context.Context, userID int64, data []byte) (*Upload, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrImageTooLarge
	}

	mimeType := strings.Split(http.DetectContentType(data), ";")[0]
	ext, ok := AllowedMimeTypes[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMimeType, mimeType)
	}

	now := s.now()
	relDir := fmt.Sprintf("slips/%d/%02d/%02d", now.Year(), now.Month(), now.Day())
	absDir := filepath.Join(s.baseDir, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	id := uuid.New().String()
	relPath := filepath.Join(relDir, id+ext)
	absPath := filepath.Join(s.baseDir, relPath)
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write slip: %w", err)
	}

	upload := &Upload{
		ID:        id,
		UserID:    userID,
		FilePath:  relPath,
		FileURL:   s.staticBase + "/" + filepath.ToSlash(relPath),
		MimeType:  mimeType,
		Size:      int64(len(data)),
		CreatedAt: now.UTC(),
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		_ = os.Remove(absPath)
		return nil, fmt.Errorf("failed to save slip record: %w", err)
	}

	log.WithFields(log.Fields{"upload_id": id, "user_id": userID, "mime": mimeType}).Debug("slip stored")
	return upload, nil
}

// Lookup resolves a path below the static prefix to its upload record and
// the file on disk. Paths that escape the upload dir are never found.
func (s *Store) Lookup(ctx context.Context, rel string) (*Upload, string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if clean == "" || strings.Contains(clean, "..") {
		return nil, "", ErrUploadNotFound
	}
	upload, err := s.repo.GetByPath(ctx, filepath.FromSlash(clean))
	if err != nil {
		return nil, "", err
	}
	return upload, filepath.Join(s.baseDir, upload.FilePath), nil
}

// Discard removes a stored slip, used when the booking that referenced it rolled back.
func (s *Store) Discard(ctx context.Context, id string) error {
	upload, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_ = os.Remove(filepath.Join(s.baseDir, upload.FilePath))
	return s.repo.Delete(ctx, id)
}
