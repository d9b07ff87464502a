package store

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/deepscribe/researchd/internal/research"
)

func TestPgVectorUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := &PgVectorStore{db: db, dimensions: 3}
	chunks := []research.Chunk{
		{DocumentID: "d1", Ordinal: 0, Text: "alpha"},
		{DocumentID: "d1", Ordinal: 1, Text: "beta"},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare(regexp.QuoteMeta(`
		INSERT INTO session_chunks (namespace, document_id, ordinal, content, embedding)
		VALUES ($1, $2, $3, $4, $5::vector)
		ON CONFLICT (namespace, document_id, ordinal)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`))
	prepared.ExpectExec().
		WithArgs("ns", "d1", 0, "alpha", "[1,0,0]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prepared.ExpectExec().
		WithArgs("ns", "d1", 1, "beta", "[0,1,0]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Upsert(context.Background(), "ns", chunks, vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgVectorUpsertRejectsWrongDimensions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO session_chunks")
	mock.ExpectRollback()

	s := &PgVectorStore{db: db, dimensions: 3}
	err = s.Upsert(context.Background(), "ns",
		[]research.Chunk{{DocumentID: "d1", Ordinal: 0, Text: "x"}},
		[][]float32{{1, 0}})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestPgVectorQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := &PgVectorStore{db: db, dimensions: 3}

	rows := sqlmock.NewRows([]string{"document_id", "ordinal", "content", "distance"}).
		AddRow("d1", 0, "alpha", 0.05).
		AddRow("d2", 2, "beta", 0.4)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT document_id, ordinal, content, embedding <=> $2::vector AS distance`)).
		WithArgs("ns", "[1,0,0]", 2).
		WillReturnRows(rows)

	got, err := s.Query(context.Background(), "ns", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows", len(got))
	}
	if got[0].DocumentID != "d1" || got[0].Distance != 0.05 {
		t.Fatalf("first row = %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgVectorDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := &PgVectorStore{db: db}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM session_chunks WHERE namespace = $1`)).
		WithArgs("ns").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := s.Delete(context.Background(), "ns"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEncodeVectorLiteral(t *testing.T) {
	t.Parallel()

	got := encodeVectorLiteral([]float32{0.5, -1, 2.25})
	if got != "[0.5,-1,2.25]" {
		t.Fatalf("encodeVectorLiteral = %q", got)
	}
	if got := encodeVectorLiteral(nil); got != "[]" {
		t.Fatalf("empty literal = %q", got)
	}
}
