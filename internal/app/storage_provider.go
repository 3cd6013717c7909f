package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/rewardcore-backend/internal/platform/gcp"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

var newBucketServiceWithConfig = gcp.NewBucketServiceWithConfig

// resolveBucketService builds the badge-card bucket client from app config.
// Callers only reach here when a bucket name is configured; a missing or
// unreachable backend is a startup error, not a silent downgrade.
func resolveBucketService(log *logger.Logger, cfg Config) (gcp.BucketService, error) {
	mode := gcp.ObjectStorageMode(strings.ToLower(strings.TrimSpace(cfg.ObjectStorageMode)))
	host := strings.TrimSpace(cfg.StorageEmulatorHost)

	modeSource := "env"
	if mode == "" {
		modeSource = "default"
		if host != "" {
			mode = gcp.ObjectStorageModeGCSEmulator
		} else {
			mode = gcp.ObjectStorageModeGCS
		}
	}

	storageCfg := gcp.ObjectStorageConfig{
		Mode:         mode,
		EmulatorHost: host,
	}
	if err := gcp.ValidateObjectStorageConfig(storageCfg); err != nil {
		log.Error(
			"Object storage provider selection failed",
			"mode", storageCfg.Mode,
			"mode_source", modeSource,
			"emulator_host", storageCfg.EmulatorHost,
			"error", err,
		)
		return nil, err
	}

	log.Info(
		"Selecting object storage provider",
		"mode", storageCfg.Mode,
		"mode_source", modeSource,
		"emulator_host", storageCfg.EmulatorHost,
	)

	bucket, err := newBucketServiceWithConfig(log, storageCfg)
	if err != nil {
		log.Error(
			"Object storage provider bootstrap failed",
			"mode", storageCfg.Mode,
			"mode_source", modeSource,
			"emulator_host", storageCfg.EmulatorHost,
			"error", err,
		)
		return nil, fmt.Errorf("object storage bootstrap (mode=%q): %w", storageCfg.Mode, err)
	}
	return bucket, nil
}
