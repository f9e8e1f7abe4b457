package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/sqlinline"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// EnsureSchema creates the history and credentials tables when missing.
func (r *GenerationRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
		return fmt.Errorf("repo: ensure schema: %w", err)
	}
	return nil
}

// Create inserts g, assigning an id when empty, and fills CreatedAt.
func (r *GenerationRepositoryPG) Create(ctx context.Context, g *domain.Generation) error {
	if g == nil {
		return fmt.Errorf("repo: nil generation")
	}
	if strings.TrimSpace(g.ID) == "" {
		g.ID = uuid.NewString()
	}
	attempted := g.AttemptedProviders
	if attempted == nil {
		attempted = []string{}
	}
	attemptedJSON, err := json.Marshal(attempted)
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGeneration,
		g.ID,
		g.UserID,
		g.Kind,
		g.Prompt,
		g.Provider,
		string(g.Status),
		g.Cost,
		g.URL,
		g.StorageKey,
		attemptedJSON,
		g.FailureKind,
		g.ErrorMessage,
		g.Country,
		nullableBytes(g.OptionsJSON),
	)
	if err := row.Scan(&g.CreatedAt); err != nil {
		return fmt.Errorf("repo: insert generation: %w", err)
	}
	return nil
}

// GetByID returns domain.ErrNotFound for unknown or malformed ids.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, domain.ErrNotFound
	}
	g, err := scanGeneration(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, strings.TrimSpace(id)))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *GenerationRepositoryPG) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	rows, err := r.sql.Query(ctx, sqlinline.QListRecentGenerations, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Generation, 0, limit)
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row scanner) (*domain.Generation, error) {
	var (
		g         domain.Generation
		status    string
		attempted []byte
	)
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Kind,
		&g.Prompt,
		&g.Provider,
		&status,
		&g.Cost,
		&g.URL,
		&g.StorageKey,
		&attempted,
		&g.FailureKind,
		&g.ErrorMessage,
		&g.Country,
		&g.OptionsJSON,
		&g.CreatedAt,
	); err != nil {
		return nil, err
	}
	g.Status = domain.GenerationStatus(status)
	g.AttemptedProviders = []string{}
	if len(attempted) > 0 {
		if err := json.Unmarshal(attempted, &g.AttemptedProviders); err != nil {
			return nil, fmt.Errorf("repo: decode attempted_providers: %w", err)
		}
	}
	return &g, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
