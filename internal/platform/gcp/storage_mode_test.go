package gcp

import "testing"

func TestResolveObjectStorageConfig_ModeFallback(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")
	cfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCSEmulator {
		t.Fatalf("emulator host alone selects emulator mode, got %q", cfg.Mode)
	}

	t.Setenv("STORAGE_EMULATOR_HOST", "")
	cfg, err = ResolveObjectStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCS {
		t.Fatalf("no overrides defaults to gcs, got %q", cfg.Mode)
	}

	t.Setenv("OBJECT_STORAGE_MODE", "s3")
	if _, err := ResolveObjectStorageConfigFromEnv(); err == nil {
		t.Fatalf("unknown mode must be rejected")
	}
}

func TestValidateObjectStorageConfig_EmulatorHost(t *testing.T) {
	err := ValidateObjectStorageConfig(ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator})
	if err == nil {
		t.Fatalf("emulator mode without host must fail")
	}
	err = ValidateObjectStorageConfig(ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "fake-gcs"})
	if err == nil {
		t.Fatalf("host without scheme must fail")
	}
	err = ValidateObjectStorageConfig(ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443"})
	if err != nil {
		t.Fatalf("valid emulator config rejected: %v", err)
	}
}

func TestGetPublicURL_Precedence(t *testing.T) {
	bs := &bucketService{bucketName: "badges", cdnDomain: "cdn.example.com"}
	if got := bs.GetPublicURL("/profile_card/u/1.png"); got != "https://cdn.example.com/profile_card/u/1.png" {
		t.Fatalf("cdn domain wins: %q", got)
	}

	bs = &bucketService{bucketName: "badges", storageMode: ObjectStorageModeGCSEmulator, publicBaseURL: "http://localhost:4443"}
	want := "http://localhost:4443/storage/v1/b/badges/o/profile_card%2Fu%2F1.png?alt=media"
	if got := bs.GetPublicURL("profile_card/u/1.png"); got != want {
		t.Fatalf("emulator media URL:\n got %q\nwant %q", got, want)
	}

	bs = &bucketService{bucketName: "badges", storageMode: ObjectStorageModeGCS}
	if got := bs.GetPublicURL("k.png"); got != "https://storage.googleapis.com/badges/k.png" {
		t.Fatalf("default public URL: %q", got)
	}
}
