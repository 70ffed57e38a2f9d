package storage

import (
	"context"
	"testing"
)

func TestS3StorageURL(t *testing.T) {
	ctx := context.Background()

	s, err := NewS3Storage(ctx, Config{Endpoint: "http://minio:9000/", Bucket: "statements", AccessKey: "k", SecretKey: "s"})
	if err != nil {
		t.Fatalf("NewS3Storage returned error: %v", err)
	}
	if got := s.GetURL("a/b.csv"); got != "http://minio:9000/statements/a/b.csv" {
		t.Fatalf("unexpected url %s", got)
	}

	aws, err := NewS3Storage(ctx, Config{Bucket: "petcare", Region: "eu-central-1", AccessKey: "k", SecretKey: "s"})
	if err != nil {
		t.Fatalf("NewS3Storage returned error: %v", err)
	}
	if got := aws.GetURL("x.csv"); got != "https://petcare.s3.amazonaws.com/x.csv" {
		t.Fatalf("unexpected url %s", got)
	}

	if _, err := NewS3Storage(ctx, Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
