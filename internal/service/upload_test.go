package service

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// testLogger — логгер тестов, пишет только ошибки.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// bytesReader — reader над строкой для тестовых загрузок.
func bytesReader(s string) io.Reader {
	return strings.NewReader(s)
}

// setupUploadTestEnv создаёт хранилище, листинг и сервис загрузки.
func setupUploadTestEnv(t *testing.T, baseURL string) (*uploadstore.Store, *ListingService, *UploadService) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "slidecast")
	store, err := uploadstore.New(root, 1<<20)
	if err != nil {
		t.Fatalf("Ошибка создания хранилища: %v", err)
	}

	logger := testLogger()
	listing := NewListingService(store, 16, time.Minute, 5, baseURL, logger)
	upload := NewUploadService(store, listing, baseURL, logger)

	return store, listing, upload
}

func TestUpload_Success(t *testing.T) {
	_, _, upload := setupUploadTestEnv(t, "https://media.example.com")

	desc, err := upload.Upload(FeatureUpload, bytesReader("картинка"), "photo.png")
	if err != nil {
		t.Fatalf("Upload вернул ошибку: %v", err)
	}

	if desc.URL != "https://media.example.com/api/v1/files/"+desc.RelativePath {
		t.Errorf("Неверный публичный URL: %q", desc.URL)
	}
	if !strings.HasPrefix(desc.RelativePath, FeatureUpload+"/") {
		t.Errorf("Файл должен лежать в партиции %s: %q", FeatureUpload, desc.RelativePath)
	}
}

func TestUpload_UnsupportedType(t *testing.T) {
	_, _, upload := setupUploadTestEnv(t, "")

	_, err := upload.Upload(FeatureUpload, bytesReader("#!/bin/sh"), "script.sh")
	if !errors.Is(err, uploadstore.ErrUnsupportedType) {
		t.Errorf("Хотели ErrUnsupportedType, получили: %v", err)
	}
}

func TestUpload_InvalidatesListingCache(t *testing.T) {
	_, listing, upload := setupUploadTestEnv(t, "")

	items, total, err := listing.List(10, 0, 5)
	if err != nil {
		t.Fatalf("List вернул ошибку: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("Хранилище должно быть пустым: total=%d", total)
	}

	if _, err := upload.Upload(FeatureUpload, bytesReader("данные"), "doc.pdf"); err != nil {
		t.Fatalf("Upload вернул ошибку: %v", err)
	}

	// Без инвалидации кэш отдал бы закэшированную пустую страницу.
	_, total, err = listing.List(10, 0, 5)
	if err != nil {
		t.Fatalf("List вернул ошибку: %v", err)
	}
	if total != 1 {
		t.Errorf("Листинг после загрузки: хотели total=1, получили %d", total)
	}
}

func TestDelete_RemovesAndInvalidates(t *testing.T) {
	store, listing, upload := setupUploadTestEnv(t, "")

	desc, err := upload.Upload(FeatureUpload, bytesReader("данные"), "doc.pdf")
	if err != nil {
		t.Fatalf("Upload вернул ошибку: %v", err)
	}

	if _, total, _ := listing.List(10, 0, 5); total != 1 {
		t.Fatalf("Листинг до удаления: хотели total=1, получили %d", total)
	}

	if err := upload.Delete(desc.RelativePath); err != nil {
		t.Fatalf("Delete вернул ошибку: %v", err)
	}

	if _, _, err := store.Open(desc.RelativePath); !errors.Is(err, uploadstore.ErrNotFound) {
		t.Errorf("Файл должен быть удалён, получили: %v", err)
	}
	if _, total, _ := listing.List(10, 0, 5); total != 0 {
		t.Errorf("Листинг после удаления: хотели total=0, получили %d", total)
	}
}

func TestDelete_NotFound(t *testing.T) {
	_, _, upload := setupUploadTestEnv(t, "")

	err := upload.Delete("upload/2026/01/01/deadbeef.png")
	if !errors.Is(err, uploadstore.ErrNotFound) {
		t.Errorf("Хотели ErrNotFound, получили: %v", err)
	}
}
