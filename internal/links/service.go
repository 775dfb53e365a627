package links

import (
	"context"
	"errors"
	"strings"

	"github.com/remember-rp/concierge/internal/model"
)

var (
	ErrInvalidURL = errors.New("url must start with http:// or https://")
	ErrNotFound   = errors.New("link not found")
)

type Store interface {
	Upsert(ctx context.Context, link model.Link) error
	Delete(ctx context.Context, label string) (bool, error)
	List(ctx context.Context) ([]model.Link, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add inserts or replaces a labeled URL (last write wins per label).
func (s *Service) Add(ctx context.Context, label, url string) error {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return ErrInvalidURL
	}
	return s.store.Upsert(ctx, model.Link{Label: strings.TrimSpace(label), URL: url})
}

func (s *Service) Remove(ctx context.Context, label string) error {
	deleted, err := s.store.Delete(ctx, label)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]model.Link, error) {
	return s.store.List(ctx)
}
