package sqlite

import (
	"collab-server/core"
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			content BLOB,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS versions (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			content BLOB,
			created_at DATETIME,
			FOREIGN KEY (document_id) REFERENCES documents(id)
		);`,
		`CREATE TABLE IF NOT EXISTS members (
			document_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (document_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_versions_document ON versions(document_id, created_at);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("failed to initialize schema: %v", err)
		}
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Create(ctx context.Context, doc *core.Document) (string, error) {
	id := ulid.Make().String()
	now := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"owner_id":    doc.OwnerID,
		"data_length": len(doc.Content),
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO documents (id, owner_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, doc.OwnerID, doc.Content, now, now)
	if err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}

	if doc.OwnerID != "" {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO members (document_id, user_id) VALUES (?, ?)", id, doc.OwnerID)
		if err != nil {
			log.WithError(err).Error("Failed to record document owner membership")
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	log.Info("Document created successfully")
	return id, nil
}

func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	doc := core.Document{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT owner_id, content, created_at, updated_at FROM documents WHERE id = ?", id).
		Scan(&doc.OwnerID, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn("Document with specified ID not found")
			return nil, fmt.Errorf("document with id %s not found", id)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}
	return &doc, nil
}

func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.owner_id, d.created_at, d.updated_at
		 FROM documents d JOIN members m ON m.document_id = d.id
		 WHERE m.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*core.Document{}
	for rows.Next() {
		var doc core.Document
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (s *sqliteStore) IsMember(ctx context.Context, documentID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM members WHERE document_id = ? AND user_id = ?", documentID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) AddMember(ctx context.Context, documentID, userID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM documents WHERE id = ?", documentID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("document with id %s not found", documentID)
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO members (document_id, user_id) VALUES (?, ?)", documentID, userID)
	return err
}

// ApplyUpdate overwrites the current content and appends a version record in
// one transaction: either both are visible afterwards or neither is.
func (s *sqliteStore) ApplyUpdate(ctx context.Context, documentID, userID string, content []byte) error {
	log := logrus.WithFields(logrus.Fields{
		"document_id": documentID,
		"user_id":     userID,
		"data_length": len(content),
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		"UPDATE documents SET content = ?, updated_at = ? WHERE id = ?", content, now, documentID)
	if err != nil {
		log.WithError(err).Error("Failed to overwrite document content")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document with id %s not found", documentID)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO versions (id, document_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)",
		ulid.Make().String(), documentID, userID, content, now)
	if err != nil {
		log.WithError(err).Error("Failed to append version record")
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debug("Update applied")
	return nil
}

func (s *sqliteStore) ListVersions(ctx context.Context, documentID string) ([]*core.Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, user_id, created_at FROM versions
		 WHERE document_id = ? ORDER BY created_at DESC, id DESC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []*core.Version{}
	for rows.Next() {
		var v core.Version
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.UserID, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}
