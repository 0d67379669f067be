package documents

import (
	"collab-server/core"
	"collab-server/middleware"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type DocumentCreateResponse struct {
	ID string `json:"id"`
}

// HandleCreate stores a new document with the request body as initial
// content. The authenticated user becomes the owner and first member.
func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User not found in context"})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		doc := &core.Document{
			OwnerID: userID,
			Content: body,
		}
		id, err := store.Create(r.Context(), doc)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": userID,
			}).Error("Failed to create document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create document"})
			return
		}

		render.JSON(w, r, DocumentCreateResponse{ID: id})
	}
}

// HandleList returns metadata for all documents the user is a member of.
func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User not found in context"})
			return
		}

		docs, err := store.List(r.Context(), userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": userID,
			}).Error("Failed to list documents")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list documents"})
			return
		}

		if docs == nil {
			docs = []*core.Document{}
		}
		render.JSON(w, r, docs)
	}
}

// HandleGet returns the document's current content, member-only.
func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User not found in context"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		if !requireMembership(w, r, store, id, userID) {
			return
		}

		doc, err := store.FindID(r.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"document_id": id,
			}).Warn("Failed to get document")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Document not found"})
			return
		}

		render.JSON(w, r, doc)
	}
}

// HandleListVersions returns the document's version history, newest first.
func HandleListVersions(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User not found in context"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		if !requireMembership(w, r, store, id, userID) {
			return
		}

		versions, err := store.ListVersions(r.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"document_id": id,
			}).Error("Failed to list versions")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list versions"})
			return
		}

		if versions == nil {
			versions = []*core.Version{}
		}
		render.JSON(w, r, versions)
	}
}

// HandleAddMember grants another user access to the document.
func HandleAddMember(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User not found in context"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		if !requireMembership(w, r, store, id, userID) {
			return
		}

		var body struct {
			UserID string `json:"userId"`
		}
		if err := render.DecodeJSON(r.Body, &body); err != nil || body.UserID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "userId is required"})
			return
		}

		if err := store.AddMember(r.Context(), id, body.UserID); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"document_id": id,
				"user_id":     body.UserID,
			}).Error("Failed to add member")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to add member"})
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}

// requireMembership writes a 403 and returns false unless the user is a
// member of the document.
func requireMembership(w http.ResponseWriter, r *http.Request, store core.DocumentStore, documentID, userID string) bool {
	member, err := store.IsMember(r.Context(), documentID, userID)
	if err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Document not found"})
		return false
	}
	if !member {
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, map[string]string{"error": "Access denied"})
		return false
	}
	return true
}
