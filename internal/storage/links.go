package storage

import (
	"context"

	"github.com/remember-rp/concierge/internal/model"
	"github.com/remember-rp/concierge/libs/db"
)

type LinkRepository struct {
	pool *db.Pool
}

func NewLinkRepository(pool *db.Pool) *LinkRepository {
	return &LinkRepository{pool: pool}
}

func (r *LinkRepository) Upsert(ctx context.Context, link model.Link) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO links (label, url)
		VALUES ($1, $2)
		ON CONFLICT (label) DO UPDATE SET url = $2
	`, link.Label, link.URL)
	return err
}

func (r *LinkRepository) Delete(ctx context.Context, label string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM links WHERE label = $1`, label)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *LinkRepository) List(ctx context.Context) ([]model.Link, error) {
	rows, err := r.pool.Query(ctx, `SELECT label, url FROM links ORDER BY label ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.Label, &l.URL); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return links, nil
}
