package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"writing-game-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// TemplateLoader loads question templates stored as JSONB in Postgres.
type TemplateLoader struct {
	pool *pgxpool.Pool
}

func NewTemplateLoader(pool *pgxpool.Pool) *TemplateLoader {
	return &TemplateLoader{pool: pool}
}

func (l *TemplateLoader) LoadTemplate(ctx context.Context, id string) (domain.Template, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM writing_templates WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Template{}, domain.ErrTemplateNotFound
	}
	if err != nil {
		return domain.Template{}, fmt.Errorf("load template: %w", err)
	}
	return decodeTemplate(id, raw)
}

func (l *TemplateLoader) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM writing_templates ORDER BY data->>'name', id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpl, err := decodeTemplate(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

func decodeTemplate(id string, raw []byte) (domain.Template, error) {
	var tpl domain.Template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return domain.Template{}, fmt.Errorf("unmarshal template %s: %w", id, err)
	}
	tpl.ID = id
	return tpl, nil
}
