package temporalx

import (
	"time"

	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout time.Duration
	DialMaxWait time.Duration
	Backoff     time.Duration
	BackoffMax  time.Duration
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "rewardcore"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "rewardcore"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		DialTimeout: time.Duration(envutil.IntRange("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5, 1, 300)) * time.Second,
		DialMaxWait: time.Duration(envutil.IntRange("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 60, 0, 3600)) * time.Second,
		Backoff:     time.Duration(envutil.IntRange("TEMPORAL_DIAL_BACKOFF_MS", 250, 1, 60000)) * time.Millisecond,
		BackoffMax:  time.Duration(envutil.IntRange("TEMPORAL_DIAL_BACKOFF_MAX_MS", 5000, 1, 300000)) * time.Millisecond,
	}
}

func (c Config) mtls() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
