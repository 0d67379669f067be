package filesystem

import (
	"collab-server/core"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// documentRecord is the on-disk layout: one JSON file per document carrying
// content, membership and version history, so an update replaces the record
// in a single rename and never leaves content without its version.
type documentRecord struct {
	Document core.Document  `json:"document"`
	Members  []string       `json:"members"`
	Versions []core.Version `json:"versions"`
}

type fsStore struct {
	basePath string
	mu       sync.Mutex // serializes read-modify-write cycles
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) recordPath(id string) string {
	return filepath.Join(s.basePath, id+".json")
}

func (s *fsStore) readRecord(id string) (*documentRecord, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document with id %s not found", id)
		}
		return nil, err
	}
	var rec documentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document record %s: %v", id, err)
	}
	return &rec, nil
}

// writeRecord writes to a temp file and renames it into place so readers
// never observe a half-written record.
func (s *fsStore) writeRecord(rec *documentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tmp := s.recordPath(rec.Document.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.recordPath(rec.Document.ID))
}

func (s *fsStore) Create(ctx context.Context, doc *core.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	now := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"owner_id":    doc.OwnerID,
	})

	rec := &documentRecord{Document: *doc}
	rec.Document.ID = id
	rec.Document.CreatedAt = now
	rec.Document.UpdatedAt = now
	if doc.OwnerID != "" {
		rec.Members = []string{doc.OwnerID}
	}

	if err := s.writeRecord(rec); err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}
	log.Info("Document created successfully")
	return id, nil
}

func (s *fsStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(id)
	if err != nil {
		logrus.WithField("document_id", id).Warn("Document with specified ID not found")
		return nil, err
	}
	doc := rec.Document
	return &doc, nil
}

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	docs := []*core.Document{}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		id := file.Name()[:len(file.Name())-len(".json")]
		rec, err := s.readRecord(id)
		if err != nil {
			logrus.WithError(err).Warnf("Failed to read document record %s, skipping", file.Name())
			continue
		}
		if !contains(rec.Members, userID) {
			continue
		}
		doc := rec.Document
		doc.Content = nil
		docs = append(docs, &doc)
	}
	return docs, nil
}

func (s *fsStore) IsMember(ctx context.Context, documentID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(documentID)
	if err != nil {
		return false, err
	}
	return contains(rec.Members, userID), nil
}

func (s *fsStore) AddMember(ctx context.Context, documentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(documentID)
	if err != nil {
		return err
	}
	if contains(rec.Members, userID) {
		return nil
	}
	rec.Members = append(rec.Members, userID)
	return s.writeRecord(rec)
}

func (s *fsStore) ApplyUpdate(ctx context.Context, documentID, userID string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(documentID)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.Document.Content = content
	rec.Document.UpdatedAt = now
	rec.Versions = append(rec.Versions, core.Version{
		ID:         ulid.Make().String(),
		DocumentID: documentID,
		UserID:     userID,
		Content:    content,
		CreatedAt:  now,
	})

	if err := s.writeRecord(rec); err != nil {
		logrus.WithFields(logrus.Fields{
			"document_id": documentID,
			"user_id":     userID,
		}).WithError(err).Error("Failed to apply update")
		return err
	}
	return nil
}

func (s *fsStore) ListVersions(ctx context.Context, documentID string) ([]*core.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(documentID)
	if err != nil {
		return nil, err
	}

	versions := make([]*core.Version, 0, len(rec.Versions))
	for i := len(rec.Versions) - 1; i >= 0; i-- {
		v := rec.Versions[i]
		versions = append(versions, &core.Version{
			ID:         v.ID,
			DocumentID: v.DocumentID,
			UserID:     v.UserID,
			CreatedAt:  v.CreatedAt,
		})
	}
	return versions, nil
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}
