package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "pharmacy-invoice-service/pkg/errors"
)

func TestS3ConfigValidate(t *testing.T) {
	if err := (&S3Config{Bucket: "invoices"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (&S3Config{Bucket: "  "}).Validate(); err == nil {
		t.Error("expected error for blank bucket")
	}
}

func TestLocalFetcher(t *testing.T) {
	root := t.TempDir()
	key := "2021/march/oakview/email/invoice.xlsx"

	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create fixture dirs: %v", err)
	}
	if err := os.WriteFile(path, []byte("workbook bytes"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	fetcher := &LocalFetcher{Root: root}

	t.Run("reads file under root", func(t *testing.T) {
		data, err := fetcher.Fetch(context.Background(), key)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(data) != "workbook bytes" {
			t.Errorf("Fetch() = %q", data)
		}
	})

	t.Run("leading slash tolerated", func(t *testing.T) {
		if _, err := fetcher.Fetch(context.Background(), "/"+key); err != nil {
			t.Errorf("Fetch() error = %v", err)
		}
	})

	t.Run("missing file maps to object_not_found", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(), "2021/march/oakview/email/absent.xlsx")
		if err == nil {
			t.Fatal("expected error")
		}
		if !apperrors.HasCode(err, apperrors.CodeObjectNotFound) {
			t.Errorf("error = %v, want object_not_found", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := fetcher.Fetch(ctx, key)
		if err == nil {
			t.Fatal("expected error for cancelled context")
		}
		if !apperrors.HasCode(err, apperrors.CodeFetchFailed) {
			t.Errorf("error = %v, want fetch_failed", err)
		}
	})
}
