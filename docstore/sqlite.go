// SQLite-backed document store.
//
// Information Hiding:
// - SQL schema and serialization details hidden from users
// - Documents stored as JSON bodies keyed by (collection, doc_id)
// - Filter and update evaluation happens in Go after loading rows

package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore implements Store backed by SQLite.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens (creating if needed) a SQLite-backed store at path.
// Parent directories are created automatically.
func OpenSqlite(path string) (*SqliteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSqliteInMemory creates a SQLite store that lives only in memory.
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SqliteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, doc_id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// loadCollection reads every document of a collection in insertion order.
func (s *SqliteStore) loadCollection(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Find returns matching documents in insertion order, up to limit.
func (s *SqliteStore) Find(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	docs, err := s.loadCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	return findDocs(docs, filter, limit)
}

// FindOne returns the first matching document, or nil if none matches.
func (s *SqliteStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	results, err := s.Find(ctx, collection, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Count returns the number of matching documents.
func (s *SqliteStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	if len(filter) == 0 {
		var count int64
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("failed to count documents: %w", err)
		}
		return count, nil
	}

	docs, err := s.loadCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, doc := range docs {
		ok, err := Matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// Distinct returns unique values of field across matching documents,
// in first-seen order.
func (s *SqliteStore) Distinct(ctx context.Context, collection, field string, filter Filter) ([]interface{}, error) {
	docs, err := s.loadCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var values []interface{}
	for _, doc := range docs {
		ok, err := Matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		val, exists := lookupPath(doc, field)
		if !exists {
			continue
		}
		key := canonical(val)
		if !seen[key] {
			seen[key] = true
			values = append(values, val)
		}
	}
	return values, nil
}

// Aggregate runs a pipeline over the collection, truncating output to limit.
func (s *SqliteStore) Aggregate(ctx context.Context, collection string, pipeline []map[string]interface{}, limit int) ([]Document, error) {
	docs, err := s.loadCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	results, err := runPipeline(docs, pipeline)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// InsertOne stores a document. The document must carry a string _id.
func (s *SqliteStore) InsertOne(ctx context.Context, collection string, doc Document) error {
	id, err := doc.ID()
	if err != nil {
		return err
	}
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check document: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, doc_id, body) VALUES (?, ?, ?)`,
		collection, id, body)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// InsertMany stores documents in order inside a transaction. A duplicate
// _id rolls back the whole batch.
func (s *SqliteStore) InsertMany(ctx context.Context, collection string, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		id, err := doc.ID()
		if err != nil {
			return err
		}
		body, err := encodeDocument(doc)
		if err != nil {
			return err
		}
		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE collection = ? AND doc_id = ?`,
			collection, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check document: %w", err)
		}
		if exists > 0 {
			return ErrDuplicateID
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (collection, doc_id, body) VALUES (?, ?, ?)`,
			collection, id, body)
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
	}
	return tx.Commit()
}

// UpdateOne applies update operators to the first matching document.
func (s *SqliteStore) UpdateOne(ctx context.Context, collection string, filter Filter, update map[string]interface{}) (UpdateResult, error) {
	return s.update(ctx, collection, filter, update, 1)
}

// UpdateMany applies update operators to every matching document.
func (s *SqliteStore) UpdateMany(ctx context.Context, collection string, filter Filter, update map[string]interface{}) (UpdateResult, error) {
	return s.update(ctx, collection, filter, update, 0)
}

func (s *SqliteStore) update(ctx context.Context, collection string, filter Filter, update map[string]interface{}, max int) (UpdateResult, error) {
	docs, err := s.loadCollection(ctx, collection)
	if err != nil {
		return UpdateResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var result UpdateResult
	for _, doc := range docs {
		if max > 0 && result.MatchedCount >= int64(max) {
			break
		}
		ok, err := Matches(doc, filter)
		if err != nil {
			return UpdateResult{}, err
		}
		if !ok {
			continue
		}
		result.MatchedCount++
		updated, changed, err := applyUpdate(doc, update)
		if err != nil {
			return UpdateResult{}, err
		}
		if !changed {
			continue
		}
		id, err := doc.ID()
		if err != nil {
			return UpdateResult{}, err
		}
		body, err := encodeDocument(updated)
		if err != nil {
			return UpdateResult{}, err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET body = ? WHERE collection = ? AND doc_id = ?`,
			body, collection, id)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("failed to update document: %w", err)
		}
		result.ModifiedCount++
	}

	if err := tx.Commit(); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// ReplaceOne replaces the first matching document wholesale, preserving
// its _id.
func (s *SqliteStore) ReplaceOne(ctx context.Context, collection string, filter Filter, replacement Document) (UpdateResult, error) {
	docs, err := s.loadCollection(ctx, collection)
	if err != nil {
		return UpdateResult{}, err
	}

	for _, doc := range docs {
		ok, err := Matches(doc, filter)
		if err != nil {
			return UpdateResult{}, err
		}
		if !ok {
			continue
		}
		newDoc := replacement.Clone()
		if newDoc == nil {
			newDoc = Document{}
		}
		newDoc[IDField] = doc[IDField]
		result := UpdateResult{MatchedCount: 1}
		if canonical(map[string]interface{}(doc)) == canonical(map[string]interface{}(newDoc)) {
			return result, nil
		}
		id, err := doc.ID()
		if err != nil {
			return UpdateResult{}, err
		}
		body, err := encodeDocument(newDoc)
		if err != nil {
			return UpdateResult{}, err
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE documents SET body = ? WHERE collection = ? AND doc_id = ?`,
			body, collection, id)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("failed to replace document: %w", err)
		}
		result.ModifiedCount = 1
		return result, nil
	}
	return UpdateResult{}, nil
}

// DeleteOne removes the first matching document.
func (s *SqliteStore) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	return s.delete(ctx, collection, filter, 1)
}

// DeleteMany removes every matching document.
func (s *SqliteStore) DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error) {
	return s.delete(ctx, collection, filter, 0)
}

func (s *SqliteStore) delete(ctx context.Context, collection string, filter Filter, max int) (int64, error) {
	docs, err := s.loadCollection(ctx, collection)
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, doc := range docs {
		if max > 0 && len(ids) >= max {
			break
		}
		ok, err := Matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		id, err := doc.ID()
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND doc_id = ?`,
			collection, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int64(len(ids)), nil
}

// ListCollections lists collection names in sorted order.
func (s *SqliteStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT collection FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Ping verifies the database connection.
func (s *SqliteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Verify SqliteStore implements Store
var _ Store = (*SqliteStore)(nil)
