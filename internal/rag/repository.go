package rag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type Repository interface {
	Insert(ctx context.Context, item *Item, embedding []float32) (int64, error)
	SearchSimilar(ctx context.Context, filter SearchFilter, embedding []float32, limit int) ([]Match, error)
	Count(ctx context.Context, deck string) (int, error)
}

type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

var _ Repository = (*PgRepository)(nil)

func (r *PgRepository) Insert(ctx context.Context, item *Item, embedding []float32) (int64, error) {
	if len(embedding) == 0 {
		return 0, fmt.Errorf("insert %s: empty embedding", item.SourceKey)
	}

	var id int64
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO slide_item (deck, kind, source_key, page, description, model_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`,
			item.Deck,
			item.Kind,
			item.SourceKey,
			item.Page,
			item.Description,
			item.ModelID,
		).Scan(&id, &item.CreatedAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO slide_item_embedding (item_id, embedding, embedding_model)
			VALUES ($1, $2, $3)
		`, id, pgvector.NewVector(embedding), item.EmbeddingModel)
		return err
	})
	if err != nil {
		return 0, err
	}

	item.ID = id
	return id, nil
}

// SearchSimilar returns the limit nearest items by L2 distance.
func (r *PgRepository) SearchSimilar(ctx context.Context, filter SearchFilter, embedding []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 3
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx, `
		SELECT
			i.id, i.deck, i.kind, i.source_key, i.page, i.description,
			i.model_id, e.embedding_model, i.created_at, e.embedding <-> $3 AS distance
		FROM slide_item i
		JOIN slide_item_embedding e ON i.id = e.item_id
		WHERE ($1 = '' OR i.deck = $1)
		  AND ($2 = '' OR e.embedding_model = $2)
		ORDER BY distance
		LIMIT $4
	`, filter.Deck, filter.EmbeddingModel, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(
			&m.ID,
			&m.Deck,
			&m.Kind,
			&m.SourceKey,
			&m.Page,
			&m.Description,
			&m.ModelID,
			&m.EmbeddingModel,
			&m.CreatedAt,
			&m.Distance,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

func (r *PgRepository) Count(ctx context.Context, deck string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM slide_item WHERE $1 = '' OR deck = $1
	`, deck).Scan(&n)
	return n, err
}
