package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/USA-RedDragon/crashula/cmd"
	"github.com/USA-RedDragon/crashula/internal/config"
)

//nolint:golint,gochecknoglobals
var requiredFlags = []string{
	"--session.secret", "changeme",
}

func TestExampleConfig(t *testing.T) {
	t.Parallel()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags([]string{"--config", "../../config.example.yaml"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if testConfig.Session.Lifetime != 336*time.Hour {
		t.Errorf("unexpected session lifetime: %s", testConfig.Session.Lifetime)
	}
	if !testConfig.HTTP.Metrics.Enabled {
		t.Error("expected metrics to be enabled by the example config")
	}
	if testConfig.HTTP.Metrics.Port != 8081 {
		t.Errorf("unexpected metrics port: %d", testConfig.HTTP.Metrics.Port)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags(append([]string{"--config", ""}, requiredFlags...))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if testConfig.Persistence.Database.Driver != config.DatabaseDriverSQLite {
		t.Errorf("unexpected database driver: %s", testConfig.Persistence.Database.Driver)
	}
	if testConfig.Persistence.Uploads.Driver != config.UploadsDriverFilesystem {
		t.Errorf("unexpected uploads driver: %s", testConfig.Persistence.Uploads.Driver)
	}
	if testConfig.Persistence.Uploads.MaxSize != config.DefaultPersistenceUploadsMaxSize {
		t.Errorf("unexpected uploads max size: %d", testConfig.Persistence.Uploads.MaxSize)
	}
	if testConfig.Session.Lifetime != config.DefaultSessionLifetime {
		t.Errorf("unexpected session lifetime: %s", testConfig.Session.Lifetime)
	}
	if testConfig.HTTP.Port != config.DefaultHTTPPort {
		t.Errorf("unexpected HTTP port: %d", testConfig.HTTP.Port)
	}
}

func TestMissingOTLPEndpoint(t *testing.T) {
	t.Parallel()

	baseCmd := cmd.NewCommand("testing", "deadbeef")
	baseCmd.SetContext(context.Background())
	err := baseCmd.ParseFlags(append([]string{"--config", "", "--http.tracing.enabled", "true"}, requiredFlags...))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(baseCmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); !errors.Is(err, config.ErrOTLPEndpointRequired) {
		t.Errorf("unexpected error: %v", err)
	}

	baseCmd = cmd.NewCommand("testing", "deadbeef")
	baseCmd.SetContext(context.Background())
	err = baseCmd.ParseFlags(append([]string{"--config", "", "--http.tracing.enabled", "true", "--http.tracing.otlp_endpoint", "dummy"}, requiredFlags...))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err = config.LoadConfig(baseCmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMissingSessionSecret(t *testing.T) {
	t.Parallel()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags([]string{"--config", ""})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); !errors.Is(err, config.ErrSessionSecretRequired) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInvalidDrivers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want error
	}{
		{"database", []string{"--persistence.database.driver", "oracle"}, config.ErrDatabaseDriverInvalid},
		{"database host", []string{"--persistence.database.driver", "Postgres"}, config.ErrDBHostRequired},
		{"uploads", []string{"--persistence.uploads.driver", "ftp"}, config.ErrUploadsDriverInvalid},
		{"s3 bucket", []string{"--persistence.uploads.driver", "s3"}, config.ErrS3BucketRequired},
		{"max size", []string{"--persistence.uploads.max_size=-1"}, config.ErrUploadsMaxSizeInvalid},
		{"sentinel", []string{"--redis.enabled", "--redis.sentinel.enabled"}, config.ErrRedisSentinelIncomplete},
		{"session lifetime", []string{"--session.lifetime=-1h"}, config.ErrSessionLifetimeInvalid},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			baseCmd := cmd.NewCommand("testing", "deadbeef")
			baseCmd.SetContext(context.Background())
			err := baseCmd.ParseFlags(append(append([]string{"--config", ""}, requiredFlags...), tt.args...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testConfig, err := config.LoadConfig(baseCmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := testConfig.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("unexpected error: %v, want %v", err, tt.want)
			}
		})
	}
}

// Parallel tests are not allowed with t.Setenv
//
//nolint:golint,paralleltest
func TestEnvConfig(t *testing.T) {
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	if err := cmd.ParseFlags([]string{"--config", ""}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Setenv("HTTP__PORT", "8087")
	t.Setenv("HTTP__METRICS__PORT", "8088")
	t.Setenv("HTTP__METRICS__IPV4_HOST", "0.0.0.0")
	t.Setenv("HTTP__METRICS__IPV6_HOST", "::0")
	t.Setenv("HTTP__IPV4_HOST", "127.0.0.1")
	t.Setenv("HTTP__IPV6_HOST", "::1")
	t.Setenv("HTTP__PPROF__ENABLED", "true")
	t.Setenv("HTTP__TRUSTED_PROXIES", "127.0.0.1,127.0.0.2")
	t.Setenv("HTTP__METRICS__ENABLED", "true")
	t.Setenv("HTTP__TRACING__ENABLED", "true")
	t.Setenv("HTTP__TRACING__OTLP_ENDPOINT", "http://localhost:4317")
	t.Setenv("HTTP__CORS_HOSTS", "http://localhost:8080,http://localhost:8081")
	t.Setenv("HTTP__SECURE_COOKIES", "true")
	t.Setenv("PERSISTENCE__DATABASE__DRIVER", "postgres")
	t.Setenv("PERSISTENCE__DATABASE__DATABASE", "crashula")
	t.Setenv("PERSISTENCE__DATABASE__HOST", "host")
	t.Setenv("PERSISTENCE__DATABASE__PORT", "5432")
	t.Setenv("PERSISTENCE__DATABASE__USERNAME", "user")
	t.Setenv("PERSISTENCE__DATABASE__PASSWORD", "password")
	t.Setenv("PERSISTENCE__DATABASE__EXTRA_PARAMETERS", "sslmode=require")
	t.Setenv("PERSISTENCE__UPLOADS__DRIVER", "s3")
	t.Setenv("PERSISTENCE__UPLOADS__MAX_SIZE", "2048")
	t.Setenv("PERSISTENCE__UPLOADS__S3__REGION", "us-east-1")
	t.Setenv("PERSISTENCE__UPLOADS__S3__BUCKET", "crashes")
	t.Setenv("PERSISTENCE__UPLOADS__S3__ENDPOINT", "http://localhost:9000")
	t.Setenv("REGISTRATION__ENABLED", "true")
	t.Setenv("SESSION__SECRET", "supersecret")
	t.Setenv("SESSION__LIFETIME", "1h30m")
	t.Setenv("REDIS__ENABLED", "true")
	t.Setenv("REDIS__ADDRESS", "localhost:6380")
	t.Setenv("REDIS__USERNAME", "user123")
	t.Setenv("REDIS__PASSWORD", "password")
	t.Setenv("REDIS__DATABASE", "2")
	t.Setenv("REDIS__SENTINEL__ENABLED", "true")
	t.Setenv("REDIS__SENTINEL__ADDRESSES", "localhost:26379,localhost:26380")
	t.Setenv("REDIS__SENTINEL__MASTER_NAME", "master")
	t.Setenv("REDIS__SENTINEL__PASSWORD", "password")
	t.Setenv("NATS__ENABLED", "true")
	t.Setenv("NATS__URL", "nats://nats:4222")

	config, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if config.HTTP.Port != 8087 {
		t.Errorf("unexpected HTTP port: %d", config.HTTP.Port)
	}
	if config.HTTP.Metrics.Port != 8088 {
		t.Errorf("unexpected HTTP metrics port: %d", config.HTTP.Metrics.Port)
	}
	if config.HTTP.Metrics.IPV4Host != "0.0.0.0" {
		t.Errorf("unexpected HTTP metrics IPv4 host: %s", config.HTTP.Metrics.IPV4Host)
	}
	if config.HTTP.Metrics.IPV6Host != "::0" {
		t.Errorf("unexpected HTTP metrics IPv6 host: %s", config.HTTP.Metrics.IPV6Host)
	}
	if config.HTTP.IPV4Host != "127.0.0.1" {
		t.Errorf("unexpected HTTP IPv4 host: %s", config.HTTP.IPV4Host)
	}
	if config.HTTP.IPV6Host != "::1" {
		t.Errorf("unexpected HTTP IPv6 host: %s", config.HTTP.IPV6Host)
	}
	if !config.HTTP.PProf.Enabled {
		t.Error("unexpected HTTP pprof enabled")
	}
	if len(config.HTTP.TrustedProxies) != 2 || config.HTTP.TrustedProxies[1] != "127.0.0.2" {
		t.Errorf("unexpected HTTP trusted proxies: %v", config.HTTP.TrustedProxies)
	}
	if !config.HTTP.Metrics.Enabled {
		t.Error("unexpected HTTP metrics enabled")
	}
	if !config.HTTP.Tracing.Enabled {
		t.Error("unexpected HTTP tracing enabled")
	}
	if config.HTTP.Tracing.OTLPEndpoint != "http://localhost:4317" {
		t.Errorf("unexpected HTTP tracing OTLP endpoint: %s", config.HTTP.Tracing.OTLPEndpoint)
	}
	if len(config.HTTP.CORSHosts) != 2 || config.HTTP.CORSHosts[0] != "http://localhost:8080" {
		t.Errorf("unexpected HTTP CORS hosts: %v", config.HTTP.CORSHosts)
	}
	if !config.HTTP.SecureCookies {
		t.Error("unexpected HTTP secure cookies")
	}
	if config.Persistence.Database.Database != "crashula" {
		t.Errorf("unexpected persistence database: %s", config.Persistence.Database.Database)
	}
	if config.Persistence.Database.Driver != "postgres" {
		t.Errorf("unexpected persistence driver: %s", config.Persistence.Database.Driver)
	}
	if config.Persistence.Database.Host != "host" {
		t.Errorf("unexpected persistence host: %s", config.Persistence.Database.Host)
	}
	if config.Persistence.Database.Port != 5432 {
		t.Errorf("unexpected persistence port: %d", config.Persistence.Database.Port)
	}
	if config.Persistence.Database.Username != "user" {
		t.Errorf("unexpected persistence username: %s", config.Persistence.Database.Username)
	}
	if config.Persistence.Database.Password != "password" {
		t.Errorf("unexpected persistence password: %s", config.Persistence.Database.Password)
	}
	if config.Persistence.Database.ExtraParameters != "sslmode=require" {
		t.Errorf("unexpected persistence extra parameters: %s", config.Persistence.Database.ExtraParameters)
	}
	if config.Persistence.Uploads.Driver != "s3" {
		t.Errorf("unexpected uploads driver: %s", config.Persistence.Uploads.Driver)
	}
	if config.Persistence.Uploads.MaxSize != 2048 {
		t.Errorf("unexpected uploads max size: %d", config.Persistence.Uploads.MaxSize)
	}
	if config.Persistence.Uploads.S3.Region != "us-east-1" {
		t.Errorf("unexpected S3 region: %s", config.Persistence.Uploads.S3.Region)
	}
	if config.Persistence.Uploads.S3.Bucket != "crashes" {
		t.Errorf("unexpected S3 bucket: %s", config.Persistence.Uploads.S3.Bucket)
	}
	if config.Persistence.Uploads.S3.Endpoint != "http://localhost:9000" {
		t.Errorf("unexpected S3 endpoint: %s", config.Persistence.Uploads.S3.Endpoint)
	}
	if !config.Registration.Enabled {
		t.Error("unexpected registration enabled")
	}
	if config.Session.Secret != "supersecret" {
		t.Errorf("unexpected session secret: %s", config.Session.Secret)
	}
	if config.Session.Lifetime != 90*time.Minute {
		t.Errorf("unexpected session lifetime: %s", config.Session.Lifetime)
	}
	if !config.Redis.Enabled {
		t.Error("unexpected Redis enabled")
	}
	if config.Redis.Address != "localhost:6380" {
		t.Errorf("unexpected Redis address: %s", config.Redis.Address)
	}
	if config.Redis.Username != "user123" {
		t.Errorf("unexpected Redis username: %s", config.Redis.Username)
	}
	if config.Redis.Password != "password" {
		t.Errorf("unexpected Redis password: %s", config.Redis.Password)
	}
	if config.Redis.Database != 2 {
		t.Errorf("unexpected Redis database: %d", config.Redis.Database)
	}
	if !config.Redis.Sentinel.Enabled {
		t.Error("unexpected Redis sentinel enabled")
	}
	if len(config.Redis.Sentinel.Addresses) != 2 || config.Redis.Sentinel.Addresses[1] != "localhost:26380" {
		t.Errorf("unexpected Redis sentinel hosts: %v", config.Redis.Sentinel.Addresses)
	}
	if config.Redis.Sentinel.MasterName != "master" {
		t.Errorf("unexpected Redis sentinel master: %s", config.Redis.Sentinel.MasterName)
	}
	if config.Redis.Sentinel.Password != "password" {
		t.Errorf("unexpected Redis sentinel password: %s", config.Redis.Sentinel.Password)
	}
	if !config.NATS.Enabled {
		t.Error("unexpected NATS enabled")
	}
	if config.NATS.URL != "nats://nats:4222" {
		t.Errorf("unexpected NATS URL: %s", config.NATS.URL)
	}
}
