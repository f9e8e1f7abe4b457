package domain

import "context"

// GenerationRepository persists generation history.
type GenerationRepository interface {
	Create(ctx context.Context, g *Generation) error
	GetByID(ctx context.Context, id string) (*Generation, error)
	// ListRecent returns the newest records first. An empty userID lists
	// every caller's records.
	ListRecent(ctx context.Context, userID string, limit int) ([]Generation, error)
}
