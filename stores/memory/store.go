package memory

import (
	"collab-server/core"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type record struct {
	doc      core.Document
	members  map[string]struct{}
	versions []core.Version
}

// memStore implements DocumentStore with in-process maps. Each store owns
// its state so tests can instantiate isolated instances.
type memStore struct {
	mu        sync.RWMutex
	documents map[string]*record
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		documents: make(map[string]*record),
	}
}

func (s *memStore) Create(ctx context.Context, doc *core.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	now := time.Now()

	stored := *doc
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now

	rec := &record{
		doc:     stored,
		members: make(map[string]struct{}),
	}
	if doc.OwnerID != "" {
		rec.members[doc.OwnerID] = struct{}{}
	}
	s.documents[id] = rec

	logrus.WithFields(logrus.Fields{
		"document_id": id,
		"owner_id":    doc.OwnerID,
		"data_length": len(doc.Content),
	}).Info("Document created successfully")
	return id, nil
}

func (s *memStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.documents[id]
	if !ok {
		logrus.WithField("document_id", id).Warn("Document with specified ID not found")
		return nil, fmt.Errorf("document with id %s not found", id)
	}
	doc := rec.doc
	return &doc, nil
}

func (s *memStore) List(ctx context.Context, userID string) ([]*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := []*core.Document{}
	for _, rec := range s.documents {
		if _, ok := rec.members[userID]; !ok {
			continue
		}
		// Copy without the content field for the list view.
		docs = append(docs, &core.Document{
			ID:        rec.doc.ID,
			OwnerID:   rec.doc.OwnerID,
			CreatedAt: rec.doc.CreatedAt,
			UpdatedAt: rec.doc.UpdatedAt,
		})
	}
	return docs, nil
}

func (s *memStore) IsMember(ctx context.Context, documentID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.documents[documentID]
	if !ok {
		return false, fmt.Errorf("document with id %s not found", documentID)
	}
	_, ok = rec.members[userID]
	return ok, nil
}

func (s *memStore) AddMember(ctx context.Context, documentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.documents[documentID]
	if !ok {
		return fmt.Errorf("document with id %s not found", documentID)
	}
	rec.members[userID] = struct{}{}
	logrus.WithFields(logrus.Fields{
		"document_id": documentID,
		"user_id":     userID,
	}).Info("Member added to document")
	return nil
}

func (s *memStore) ApplyUpdate(ctx context.Context, documentID, userID string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.documents[documentID]
	if !ok {
		return fmt.Errorf("document with id %s not found", documentID)
	}

	now := time.Now()
	rec.doc.Content = append([]byte(nil), content...)
	rec.doc.UpdatedAt = now
	rec.versions = append(rec.versions, core.Version{
		ID:         ulid.Make().String(),
		DocumentID: documentID,
		UserID:     userID,
		Content:    append([]byte(nil), content...),
		CreatedAt:  now,
	})

	logrus.WithFields(logrus.Fields{
		"document_id": documentID,
		"user_id":     userID,
		"data_length": len(content),
	}).Debug("Update applied")
	return nil
}

func (s *memStore) ListVersions(ctx context.Context, documentID string) ([]*core.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.documents[documentID]
	if !ok {
		return nil, fmt.Errorf("document with id %s not found", documentID)
	}

	// Newest first, metadata only.
	versions := make([]*core.Version, 0, len(rec.versions))
	for i := len(rec.versions) - 1; i >= 0; i-- {
		v := rec.versions[i]
		versions = append(versions, &core.Version{
			ID:         v.ID,
			DocumentID: v.DocumentID,
			UserID:     v.UserID,
			CreatedAt:  v.CreatedAt,
		})
	}
	return versions, nil
}
