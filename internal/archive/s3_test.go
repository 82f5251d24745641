package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"rfq-tracker/internal/config"
)

func TestS3Archive_Key(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"", "snapshots/a.db", "snapshots/a.db"},
		{"rfq", "snapshots/a.db", "rfq/snapshots/a.db"},
		{"team/rfq", "a.db", "team/rfq/a.db"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			a := &S3Archive{prefix: tt.prefix}
			if got := a.key(tt.name); got != tt.want {
				t.Errorf("key(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestNewS3Archive_RequiresBucket(t *testing.T) {
	_, err := NewS3Archive(context.Background(), config.ArchiveConfig{Type: "s3"})
	if err == nil {
		t.Fatal("NewS3Archive() expected error without bucket")
	}
}

// TestS3Archive_RoundTrip runs against a real bucket when RFQ_TEST_S3_BUCKET is set.
func TestS3Archive_RoundTrip(t *testing.T) {
	bucket := os.Getenv("RFQ_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("RFQ_TEST_S3_BUCKET not set")
	}

	a, err := NewS3Archive(context.Background(), config.ArchiveConfig{
		Type:       "s3",
		S3Bucket:   bucket,
		S3Prefix:   fmt.Sprintf("rfq-test-%d", time.Now().UnixNano()),
		S3Region:   os.Getenv("AWS_REGION"),
		S3Endpoint: os.Getenv("RFQ_TEST_S3_ENDPOINT"),
	})
	if err != nil {
		t.Fatalf("NewS3Archive() error = %v", err)
	}
	if err := a.ValidateSetup(); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}

	if err := a.Put("snapshots/run.db", strings.NewReader("snapshot"), 8); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var buf bytes.Buffer
	if err := a.Get("snapshots/run.db", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != "snapshot" {
		t.Errorf("Get() = %q, want %q", buf.String(), "snapshot")
	}

	names, err := a.List("snapshots/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 1 || names[0] != "snapshots/run.db" {
		t.Errorf("List() = %v, want [snapshots/run.db]", names)
	}

	if err := a.Get("snapshots/missing.db", &buf); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}
