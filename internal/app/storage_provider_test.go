package app

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/gcp"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

func TestResolveBucketServiceGCSMode(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	orig := newBucketServiceWithConfig
	t.Cleanup(func() {
		newBucketServiceWithConfig = orig
	})

	var captured gcp.ObjectStorageConfig
	expected := &testBucketService{}
	newBucketServiceWithConfig = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		captured = cfg
		return expected, nil
	}

	got, err := resolveBucketService(log, Config{
		ObjectStorageMode: string(gcp.ObjectStorageModeGCS),
	})
	if err != nil {
		t.Fatalf("resolveBucketService: %v", err)
	}
	if got != expected {
		t.Fatalf("bucket: expected stub bucket instance")
	}
	if captured.Mode != gcp.ObjectStorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", gcp.ObjectStorageModeGCS, captured.Mode)
	}
}

func TestResolveBucketServiceGCSEmulatorMode(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	orig := newBucketServiceWithConfig
	t.Cleanup(func() {
		newBucketServiceWithConfig = orig
	})

	var captured gcp.ObjectStorageConfig
	expected := &testBucketService{}
	newBucketServiceWithConfig = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		captured = cfg
		return expected, nil
	}

	got, err := resolveBucketService(log, Config{
		ObjectStorageMode:   string(gcp.ObjectStorageModeGCSEmulator),
		StorageEmulatorHost: "http://fake-gcs:4443",
	})
	if err != nil {
		t.Fatalf("resolveBucketService: %v", err)
	}
	if got != expected {
		t.Fatalf("bucket: expected stub bucket instance")
	}
	if captured.Mode != gcp.ObjectStorageModeGCSEmulator {
		t.Fatalf("mode: want=%q got=%q", gcp.ObjectStorageModeGCSEmulator, captured.Mode)
	}
	if captured.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("emulator host: want=%q got=%q", "http://fake-gcs:4443", captured.EmulatorHost)
	}
}

func TestResolveBucketServiceDefaultsToEmulatorWhenHostSet(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	orig := newBucketServiceWithConfig
	t.Cleanup(func() {
		newBucketServiceWithConfig = orig
	})

	var captured gcp.ObjectStorageConfig
	newBucketServiceWithConfig = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		captured = cfg
		return &testBucketService{}, nil
	}

	_, err = resolveBucketService(log, Config{
		StorageEmulatorHost: "http://fake-gcs:4443",
	})
	if err != nil {
		t.Fatalf("resolveBucketService: %v", err)
	}
	if captured.Mode != gcp.ObjectStorageModeGCSEmulator {
		t.Fatalf("mode: want=%q got=%q", gcp.ObjectStorageModeGCSEmulator, captured.Mode)
	}
}

func TestResolveBucketServiceInvalidMode(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	orig := newBucketServiceWithConfig
	t.Cleanup(func() {
		newBucketServiceWithConfig = orig
	})

	newBucketServiceWithConfig = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		t.Fatalf("bootstrap should not run for invalid mode %q", cfg.Mode)
		return nil, nil
	}

	_, err = resolveBucketService(log, Config{
		ObjectStorageMode: "invalid",
	})
	if err == nil {
		t.Fatalf("resolveBucketService: expected error, got nil")
	}
}

func TestResolveBucketServiceMissingEmulatorHost(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	orig := newBucketServiceWithConfig
	t.Cleanup(func() {
		newBucketServiceWithConfig = orig
	})

	newBucketServiceWithConfig = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		t.Fatalf("bootstrap should not run without an emulator host")
		return nil, nil
	}

	_, err = resolveBucketService(log, Config{
		ObjectStorageMode: string(gcp.ObjectStorageModeGCSEmulator),
	})
	if err == nil {
		t.Fatalf("resolveBucketService: expected error, got nil")
	}
}

func TestResolveBucketServiceInvalidEmulatorHost(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	orig := newBucketServiceWithConfig
	t.Cleanup(func() {
		newBucketServiceWithConfig = orig
	})

	newBucketServiceWithConfig = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		t.Fatalf("bootstrap should not run with a malformed emulator host")
		return nil, nil
	}

	_, err = resolveBucketService(log, Config{
		ObjectStorageMode:   string(gcp.ObjectStorageModeGCSEmulator),
		StorageEmulatorHost: "not-a-url",
	})
	if err == nil {
		t.Fatalf("resolveBucketService: expected error, got nil")
	}
}

type testBucketService struct{}

func (t *testBucketService) UploadFile(dbc dbctx.Context, key string, file io.Reader) error {
	return nil
}

func (t *testBucketService) DeleteFile(dbc dbctx.Context, key string) error {
	return nil
}

func (t *testBucketService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (t *testBucketService) GetPublicURL(key string) string {
	return ""
}
