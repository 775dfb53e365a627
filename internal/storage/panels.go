package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/remember-rp/concierge/internal/model"
	"github.com/remember-rp/concierge/libs/db"
)

type PanelRepository struct {
	pool *db.Pool
}

func NewPanelRepository(pool *db.Pool) *PanelRepository {
	return &PanelRepository{pool: pool}
}

func (r *PanelRepository) Get(ctx context.Context, key string) (model.PanelRef, bool, error) {
	var ref model.PanelRef
	err := r.pool.QueryRow(ctx, `
		SELECT key, COALESCE(message_ref, ''), COALESCE(channel_ref, '')
		FROM panel_refs
		WHERE key = $1
	`, key).Scan(&ref.Key, &ref.MessageRef, &ref.ChannelRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PanelRef{}, false, nil
	}
	if err != nil {
		return model.PanelRef{}, false, err
	}
	return ref, true, nil
}

// Put is a single-row upsert: the last writer for a key always wins.
func (r *PanelRepository) Put(ctx context.Context, ref model.PanelRef) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO panel_refs (key, message_ref, channel_ref)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET message_ref = $2, channel_ref = $3
	`, ref.Key, ref.MessageRef, ref.ChannelRef)
	return err
}

func (r *PanelRepository) ClearRef(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE panel_refs SET message_ref = NULL WHERE key = $1`, key)
	return err
}
