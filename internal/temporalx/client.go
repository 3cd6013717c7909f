package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

// NewClient dials Temporal when TEMPORAL_ADDRESS is set, retrying with
// exponential backoff until the dial window closes. A nil client with a nil
// error means Temporal is disabled; the app runs the polling worker instead.
func NewClient(log *logger.Logger) (temporalsdkclient.Client, error) {
	cfg := LoadConfig()
	if cfg.Address == "" {
		if log != nil {
			log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		}
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	}
	if cfg.mtls() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}

	deadline := time.Now().Add(cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
		c, err := temporalsdkclient.DialContext(ctx, opts)
		cancel()
		if err == nil {
			if log != nil && attempt > 1 {
				log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			if envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false) {
				if err := EnsureNamespace(context.Background(), c, cfg.Namespace, log); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}
		if cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		if log != nil {
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)
		}
		time.Sleep(backoffFor(cfg, attempt))
	}
}

// EnsureNamespace verifies the namespace exists and registers it when absent.
// Meant for local/self-hosted Temporal; cloud namespaces are pre-provisioned.
func EnsureNamespace(ctx context.Context, c temporalsdkclient.Client, namespace string, log *logger.Logger) error {
	if c == nil || namespace == "" {
		return nil
	}
	cfg := LoadConfig()
	if cfg.Address == "" {
		return nil
	}

	maxWait := time.Duration(envutil.IntRange("TEMPORAL_NAMESPACE_ENSURE_TIMEOUT_SECONDS", 10, 1, 600)) * time.Second
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	// The NamespaceClient carries no implicit namespace header, so it can
	// register a namespace that does not exist yet.
	nsOpts := temporalsdkclient.Options{HostPort: cfg.Address, Logger: log}
	if cfg.mtls() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return err
		}
		nsOpts.ConnectionOptions.TLS = tlsCfg
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(nsOpts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer nsClient.Close()

	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", namespace, ctx.Err())
		}

		_, err := nsClient.Describe(ctx, namespace)
		if err == nil {
			return nil
		}

		var notFound *serviceerror.NamespaceNotFound
		if errors.As(err, &notFound) {
			if done, regErr := registerNamespace(ctx, nsClient, namespace, log); done {
				return regErr
			} else if log != nil {
				log.Warn("Temporal namespace register retrying", "namespace", namespace, "attempt", attempt)
			}
		} else if !isRetryableRPC(err) || time.Now().After(deadline) {
			return fmt.Errorf("temporal namespace ensure: describe namespace: %w", err)
		} else if log != nil {
			log.Warn("Temporal namespace describe retrying", "namespace", namespace, "attempt", attempt, "error", err)
		}
		time.Sleep(backoffFor(cfg, attempt))
	}
}

// registerNamespace returns done=false only for retryable registration errors.
func registerNamespace(ctx context.Context, nsClient temporalsdkclient.NamespaceClient, namespace string, log *logger.Logger) (bool, error) {
	retentionDays := envutil.IntRange("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7, 1, 365)
	err := nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        namespace,
		Description:                      "rewardcore auto-registered namespace",
		WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(retentionDays) * 24 * time.Hour),
	})
	if err == nil {
		if log != nil {
			log.Info("Registered Temporal namespace", "namespace", namespace, "retention_days", retentionDays)
		}
		return true, nil
	}
	var exists *serviceerror.NamespaceAlreadyExists
	if errors.As(err, &exists) {
		return true, nil
	}
	if isRetryableRPC(err) && ctx.Err() == nil {
		return false, nil
	}
	return true, fmt.Errorf("temporal namespace ensure: register namespace: %w", err)
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: both TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH are required when enabling mTLS")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("temporal tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("temporal tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

func backoffFor(cfg Config, attempt int) time.Duration {
	sleep := cfg.Backoff
	if sleep <= 0 {
		sleep = 250 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if cfg.BackoffMax > 0 && sleep >= cfg.BackoffMax {
			return cfg.BackoffMax
		}
	}
	if cfg.BackoffMax > 0 && sleep > cfg.BackoffMax {
		return cfg.BackoffMax
	}
	return sleep
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		// Smooth over startup races where the frontend is not serving yet.
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
