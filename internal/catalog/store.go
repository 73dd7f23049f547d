package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS catalog_books (
	text_id  INTEGER PRIMARY KEY,
	title    TEXT NOT NULL DEFAULT '',
	authors  TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	issued   TEXT NOT NULL DEFAULT ''
)`

// Store persists the catalog in PostgreSQL so that the suggestion service
// can start without reaching the upstream feed.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a Store backed by db.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "catalog-store"),
	}
}

// EnsureSchema creates the catalog table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// Replace swaps the stored catalog for books in a single transaction.
func (s *Store) Replace(ctx context.Context, books []Book) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_books`); err != nil {
			return fmt.Errorf("clearing catalog: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO catalog_books (text_id, title, authors, language, issued)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (text_id) DO UPDATE SET title = EXCLUDED.title, authors = EXCLUDED.authors`)
		if err != nil {
			return fmt.Errorf("preparing catalog insert: %w", err)
		}
		defer stmt.Close()
		for _, b := range books {
			if _, err := stmt.ExecContext(ctx, b.ID, b.Title, b.Authors, b.Language, b.Issued); err != nil {
				return fmt.Errorf("inserting book %d: %w", b.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("catalog stored", "books", len(books))
	return nil
}

// Load reads the stored catalog ordered by Gutenberg id.
func (s *Store) Load(ctx context.Context) ([]Book, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT text_id, title, authors, language, issued FROM catalog_books ORDER BY text_id`)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	books := make([]Book, 0, 1024)
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Authors, &b.Language, &b.Issued); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog rows: %w", err)
	}
	return books, nil
}
