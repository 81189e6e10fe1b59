package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/morezero/resource-bus/pkg/store"
)

const storeLogPrefix = "db:document_store"

// DocumentsTable holds the documents of every resource, keyed by (resource, id).
const DocumentsTable = "resource_documents"

// Querier is the subset of *pgxpool.Pool the document store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentStore persists the JSON documents of one resource. It implements
// resource.Store and resource.Lister with *store.Document instances.
type DocumentStore struct {
	db       Querier
	resource string
}

// NewDocumentStore creates a store for resourceName backed by db.
func NewDocumentStore(db Querier, resourceName string) *DocumentStore {
	return &DocumentStore{db: db, resource: resourceName}
}

const documentColumns = `id, doc, revision, created, modified`

func scanDocument(row pgx.Row) (*store.Document, error) {
	var doc store.Document
	var body []byte
	if err := row.Scan(&doc.ID, &body, &doc.Revision, &doc.Created, &doc.Modified); err != nil {
		return nil, err
	}
	doc.Body = json.RawMessage(body)
	return &doc, nil
}

// Load returns the document with id, or nil if there is none.
func (s *DocumentStore) Load(ctx context.Context, id string) (interface{}, error) {
	slog.Debug(fmt.Sprintf("%s - Load resource=%s id=%s", storeLogPrefix, s.resource, id))

	doc, err := scanDocument(s.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM resource_documents WHERE resource = $1 AND id = $2`,
		s.resource, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - load %s/%s: %w", storeLogPrefix, s.resource, id, err)
	}
	return doc, nil
}

func (s *DocumentStore) ToJSON(ctx context.Context, instance interface{}) (interface{}, error) {
	return store.DocumentJSON(ctx, instance)
}

// Upsert inserts the document or replaces its body and bumps the revision.
func (s *DocumentStore) Upsert(ctx context.Context, id string, body json.RawMessage) (interface{}, error) {
	slog.Debug(fmt.Sprintf("%s - Upsert resource=%s id=%s", storeLogPrefix, s.resource, id))

	now := time.Now().UTC()
	doc, err := scanDocument(s.db.QueryRow(ctx,
		`INSERT INTO resource_documents (resource, id, doc, revision, created, modified)
		 VALUES ($1, $2, $3, 1, $4, $4)
		 ON CONFLICT (resource, id) DO UPDATE SET
		   doc = EXCLUDED.doc,
		   revision = resource_documents.revision + 1,
		   modified = EXCLUDED.modified
		 RETURNING `+documentColumns,
		s.resource, id, []byte(body), now))
	if err != nil {
		return nil, fmt.Errorf("%s - upsert %s/%s: %w", storeLogPrefix, s.resource, id, err)
	}
	return doc, nil
}

// Delete removes the document. Deleting a missing id is not an error.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	slog.Debug(fmt.Sprintf("%s - Delete resource=%s id=%s", storeLogPrefix, s.resource, id))

	if _, err := s.db.Exec(ctx,
		`DELETE FROM resource_documents WHERE resource = $1 AND id = $2`, s.resource, id); err != nil {
		return fmt.Errorf("%s - delete %s/%s: %w", storeLogPrefix, s.resource, id, err)
	}
	return nil
}

// List returns every document of the resource ordered by id.
func (s *DocumentStore) List(ctx context.Context) ([]interface{}, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+documentColumns+` FROM resource_documents WHERE resource = $1 ORDER BY id`, s.resource)
	if err != nil {
		return nil, fmt.Errorf("%s - list %s: %w", storeLogPrefix, s.resource, err)
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%s - scan %s: %w", storeLogPrefix, s.resource, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - list %s: %w", storeLogPrefix, s.resource, err)
	}
	return out, nil
}
