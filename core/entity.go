package core

import (
	"context"
	"time"
)

type (
	// Document is a shared, collaboratively edited document. Content holds
	// the current state; the version history lives alongside it in the store.
	Document struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"-"` // Not exposed in JSON responses, used internally.
		Content   []byte    `json:"content,omitempty"` // Omitted in list views to keep responses light.
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Version is an immutable snapshot appended on every accepted update,
	// attributing the change to the user that sent it.
	Version struct {
		ID         string    `json:"id"`
		DocumentID string    `json:"documentId"`
		UserID     string    `json:"userId"`
		Content    []byte    `json:"content,omitempty"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	// DocumentStore defines the persistence layer for shared documents,
	// their membership and their version history.
	DocumentStore interface {
		// Create stores a new document and returns its generated ID. The
		// owner is recorded as the first member.
		Create(ctx context.Context, doc *Document) (string, error)

		// FindID returns a document with its current content.
		FindID(ctx context.Context, id string) (*Document, error)

		// List returns metadata for all documents the user is a member of.
		// The returned documents do not carry the Content field.
		List(ctx context.Context, userID string) ([]*Document, error)

		// IsMember reports whether the user has access to the document.
		IsMember(ctx context.Context, documentID, userID string) (bool, error)

		// AddMember grants a user access to the document.
		AddMember(ctx context.Context, documentID, userID string) error

		// ApplyUpdate overwrites the document's current content and appends
		// a version record attributed to userID. Both writes happen
		// atomically: on error neither is visible.
		ApplyUpdate(ctx context.Context, documentID, userID string, content []byte) error

		// ListVersions returns the document's version history, newest first,
		// without the Content field.
		ListVersions(ctx context.Context, documentID string) ([]*Version, error)
	}

	// TokenValidator resolves a bearer token to a stable user ID. Any
	// failure (expired, malformed, rejected, validator unreachable) is
	// returned as an error; callers treat them all as unauthorized.
	TokenValidator interface {
		Validate(ctx context.Context, token string) (string, error)
	}
)
