package memory

import (
	"collab-server/core"
	"context"
	"testing"
)

func TestCreateAndFind(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.Create(ctx, &core.Document{OwnerID: "user-1", Content: []byte(`{"a":1}`)})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty id")
	}

	doc, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID failed: %v", err)
	}
	if string(doc.Content) != `{"a":1}` {
		t.Errorf("Content mismatch: got %s", doc.Content)
	}
	if doc.OwnerID != "user-1" {
		t.Errorf("OwnerID mismatch: got %s", doc.OwnerID)
	}

	if _, err := store.FindID(ctx, "missing"); err == nil {
		t.Error("Expected error for unknown document")
	}
}

func TestOwnerIsMember(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.Create(ctx, &core.Document{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	member, err := store.IsMember(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !member {
		t.Error("Owner should be a member")
	}

	member, err = store.IsMember(ctx, id, "user-2")
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if member {
		t.Error("Non-member reported as member")
	}

	if err := store.AddMember(ctx, id, "user-2"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	member, _ = store.IsMember(ctx, id, "user-2")
	if !member {
		t.Error("Added user should be a member")
	}
}

func TestApplyUpdateAppendsVersion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.Create(ctx, &core.Document{OwnerID: "user-1", Content: []byte("v0")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.ApplyUpdate(ctx, id, "user-1", []byte("v1")); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}
	if err := store.ApplyUpdate(ctx, id, "user-2", []byte("v2")); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}

	doc, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID failed: %v", err)
	}
	if string(doc.Content) != "v2" {
		t.Errorf("Expected current content v2, got %s", doc.Content)
	}

	versions, err := store.ListVersions(ctx, id)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(versions))
	}
	// Newest first.
	if versions[0].UserID != "user-2" || versions[1].UserID != "user-1" {
		t.Errorf("Version order wrong: %s, %s", versions[0].UserID, versions[1].UserID)
	}
	if versions[0].Content != nil {
		t.Error("Version list must not carry content")
	}
}

func TestApplyUpdateUnknownDocument(t *testing.T) {
	store := NewStore()
	if err := store.ApplyUpdate(context.Background(), "missing", "user-1", []byte("x")); err == nil {
		t.Error("Expected error for unknown document")
	}
}

func TestListScopedToMember(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id1, _ := store.Create(ctx, &core.Document{OwnerID: "user-1"})
	store.Create(ctx, &core.Document{OwnerID: "user-2"})

	docs, err := store.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != id1 {
		t.Errorf("Expected only user-1's document, got %d docs", len(docs))
	}
	if docs[0].Content != nil {
		t.Error("List view must not carry content")
	}

	docs, _ = store.List(ctx, "user-3")
	if len(docs) != 0 {
		t.Errorf("Expected no documents for user-3, got %d", len(docs))
	}
}
