package app

import (
	"time"

	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	RedisAddr string

	ObjectStorageMode   string
	StorageEmulatorHost string
	BadgeBucketName     string

	Environment string
	Version     string

	SynthesisInterval        time.Duration
	ArchetypeRefreshInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:    ":" + envutil.String("PORT", "8080"),
		MetricsAddr: envutil.String("METRICS_ADDR", ""),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL: time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 3600)) * time.Second,

		RedisAddr: envutil.String("REDIS_ADDR", ""),

		ObjectStorageMode:   envutil.String("OBJECT_STORAGE_MODE", ""),
		StorageEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		BadgeBucketName:     envutil.String("BADGE_GCS_BUCKET_NAME", ""),

		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", ""),

		SynthesisInterval:        envutil.Duration("SYNTHESIS_INTERVAL", 24*time.Hour),
		ArchetypeRefreshInterval: envutil.Duration("ARCHETYPE_REFRESH_INTERVAL", 24*time.Hour),
	}
}
