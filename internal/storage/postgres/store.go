package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityZap/internal/model"
)

// Store provides Postgres persistence for entities and hatch events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertEntities inserts or updates entity records.
func (s *Store) UpsertEntities(ctx context.Context, entities []model.EntityRecord) error {
	if len(entities) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entities {
		batch.Queue(`
			INSERT INTO entities (
				id, owner, health, created_block, chain_id, pool_id, position_ref, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (id)
			DO UPDATE SET
				health = EXCLUDED.health,
				chain_id = EXCLUDED.chain_id,
				pool_id = EXCLUDED.pool_id,
				position_ref = EXCLUDED.position_ref,
				updated_at = now()
		`,
			int64(e.ID),
			e.Owner,
			int16(e.Health),
			int64(e.CreatedBlock),
			int64(e.ChainID),
			e.PoolID,
			e.PositionRef,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entities {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertHatchEvents appends hatch events.
func (s *Store) InsertHatchEvents(ctx context.Context, events []model.HatchEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO hatch_events (
				entity_id, owner, position_ref, tick_lower, tick_upper, chain_id, pool_id, created, ts
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			int64(e.EntityID),
			e.Owner,
			e.PositionRef,
			e.TickLower,
			e.TickUpper,
			int64(e.ChainID),
			e.PoolID,
			e.Created,
			e.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetEntity returns one entity record by id.
func (s *Store) GetEntity(ctx context.Context, id uint64) (model.EntityRecord, bool, error) {
	var e model.EntityRecord
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, health, created_block, chain_id, pool_id, position_ref
		FROM entities WHERE id=$1
	`, int64(id))
	var health int16
	if err := row.Scan(&e.ID, &e.Owner, &health, &e.CreatedBlock, &e.ChainID, &e.PoolID, &e.PositionRef); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EntityRecord{}, false, nil
		}
		return model.EntityRecord{}, false, err
	}
	e.Health = uint8(health)
	return e, true, nil
}
