package aws

import (
	"bytes"
	"collab-server/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
)

// documentRecord is the object layout under documents/<id>.json: the current
// content plus membership and version history in one object, so an accepted
// update is a single PutObject and never splits content from its version.
type documentRecord struct {
	Document core.Document  `json:"document"`
	Members  []string       `json:"members"`
	Versions []core.Version `json:"versions"`
}

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

func recordKey(id string) string {
	return "documents/" + id + ".json"
}

func (s *s3Store) getRecord(ctx context.Context, id string) (*documentRecord, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(recordKey(id)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("document with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get document %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document data: %v", err)
	}

	var rec documentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %v", id, err)
	}
	return &rec, nil
}

func (s *s3Store) putRecord(ctx context.Context, rec *documentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %v", err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(recordKey(rec.Document.ID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to store document %s: %v", rec.Document.ID, err)
	}
	return nil
}

func (s *s3Store) Create(ctx context.Context, doc *core.Document) (string, error) {
	id := ulid.Make().String()
	now := time.Now()

	rec := &documentRecord{Document: *doc}
	rec.Document.ID = id
	rec.Document.CreatedAt = now
	rec.Document.UpdatedAt = now
	if doc.OwnerID != "" {
		rec.Members = []string{doc.OwnerID}
	}

	if err := s.putRecord(ctx, rec); err != nil {
		return "", err
	}
	return id, nil
}

func (s *s3Store) FindID(ctx context.Context, id string) (*core.Document, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := rec.Document
	return &doc, nil
}

func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Document, error) {
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String("documents/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %v", err)
	}

	docs := []*core.Document{}
	for _, object := range output.Contents {
		resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    object.Key,
		})
		if err != nil {
			log.Printf("warn: failed to get object %s: %v", *object.Key, err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Printf("warn: failed to read object body %s: %v", *object.Key, err)
			continue
		}

		var rec documentRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Printf("warn: failed to unmarshal record %s: %v", *object.Key, err)
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

func (s *s3Store) IsMember(ctx context.Context, documentID, userID string) (bool, error) {
	rec, err := s.getRecord(ctx, documentID)
	if err != nil {
		return false, err
	}
	return contains(rec.Members, userID), nil
}

func (s *s3Store) AddMember(ctx context.Context, documentID, userID string) error {
	rec, err := s.getRecord(ctx, documentID)
	if err != nil {
		return err
	}
	if contains(rec.Members, userID) {
		return nil
	}
	rec.Members = append(rec.Members, userID)
	return s.putRecord(ctx, rec)
}

func (s *s3Store) ApplyUpdate(ctx context.Context, documentID, userID string, content []byte) error {
	rec, err := s.getRecord(ctx, documentID)
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

	return s.putRecord(ctx, rec)
}

func (s *s3Store) ListVersions(ctx context.Context, documentID string) ([]*core.Version, error) {
	rec, err := s.getRecord(ctx, documentID)
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
