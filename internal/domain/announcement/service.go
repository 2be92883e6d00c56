package announcement

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrInvalidInput = errors.New("invalid announcement")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, adminID int64, req CreateRequest) (*Announcement, error) {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return nil, ErrInvalidInput
	}

	a := &Announcement{Title: title, Content: content, CreatedBy: adminID}
	if img := strings.TrimSpace(req.Image); img != "" {
		a.Image = &img
	}
	if err := s.repo.Publish(ctx, a); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"announcement_id": a.ID, "admin_id": adminID}).Info("announcement published")
	return a, nil
}

// Latest returns nil without error when nothing is active.
func (s *Service) Latest(ctx context.Context) (*Announcement, error) {
	a, err := s.repo.Latest(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}
