// Package store provides the vector store implementations behind the
// session-namespaced chunk index.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/deepscribe/researchd/internal/research"
)

// PgVectorStore keeps chunk embeddings in Postgres with the pgvector
// extension, one row per (namespace, document, ordinal).
type PgVectorStore struct {
	db         *sql.DB
	dimensions int
}

func NewPgVectorStore(dsn string, dimensions int) (*PgVectorStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &PgVectorStore{db: db, dimensions: dimensions}, nil
}

// DB exposes the underlying handle for migrations.
func (s *PgVectorStore) DB() *sql.DB { return s.db }

func (s *PgVectorStore) Close() error { return s.db.Close() }

func (s *PgVectorStore) Upsert(ctx context.Context, namespace string, chunks []research.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_chunks (namespace, document_id, ordinal, content, embedding)
		VALUES ($1, $2, $3, $4, $5::vector)
		ON CONFLICT (namespace, document_id, ordinal)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if len(vectors[i]) != s.dimensions {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(vectors[i]), s.dimensions)
		}
		if _, err := stmt.ExecContext(ctx, namespace, chunk.DocumentID, chunk.Ordinal, chunk.Text, encodeVectorLiteral(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %s/%d: %w", chunk.DocumentID, chunk.Ordinal, err)
		}
	}
	return tx.Commit()
}

func (s *PgVectorStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]research.RetrievedChunk, error) {
	if k < 1 {
		k = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, ordinal, content, embedding <=> $2::vector AS distance
		FROM session_chunks
		WHERE namespace = $1
		ORDER BY distance ASC
		LIMIT $3`, namespace, encodeVectorLiteral(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []research.RetrievedChunk
	for rows.Next() {
		var rc research.RetrievedChunk
		if err := rows.Scan(&rc.DocumentID, &rc.Ordinal, &rc.Text, &rc.Distance); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) Delete(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_chunks WHERE namespace = $1`, namespace)
	return err
}

// encodeVectorLiteral renders a pgvector input literal, e.g. [0.1,0.2].
func encodeVectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
