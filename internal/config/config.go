package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP         HTTP         `json:"http"`
	Persistence  Persistence  `json:"persistence"`
	Registration Registration `json:"registration"`
	Session      Session      `json:"session"`
	Redis        Redis        `json:"redis"`
	NATS         NATS         `json:"nats"`
}

type Session struct {
	Secret   string        `json:"secret"`
	Lifetime time.Duration `json:"lifetime"`
}

type Registration struct {
	Enabled bool `json:"enabled"`
}

type Persistence struct {
	Database Database `json:"database"`
	Uploads  Uploads  `json:"uploads"`
}

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type Database struct {
	Driver          DatabaseDriver `json:"driver"`
	Database        string         `json:"database"`
	Username        string         `json:"username"`
	Password        string         `json:"password"`
	Host            string         `json:"host"`
	Port            uint16         `json:"port"`
	ExtraParameters string         `json:"extra_parameters" yaml:"extra_parameters"`
}

type UploadsDriver string

const (
	UploadsDriverFilesystem UploadsDriver = "filesystem"
	UploadsDriverS3         UploadsDriver = "s3"
)

type Uploads struct {
	Driver    UploadsDriver `json:"driver"`
	Directory string        `json:"directory"`
	MaxSize   int64         `json:"max_size" yaml:"max_size"`
	S3        S3            `json:"s3"`
}

type S3 struct {
	Region   string `json:"region"`
	Bucket   string `json:"bucket"`
	Endpoint string `json:"endpoint"`
}

type Sentinel struct {
	Enabled    bool     `json:"enabled"`
	Addresses  []string `json:"addresses"`
	MasterName string   `json:"master_name" yaml:"master_name"`
	Password   string   `json:"password"`
}

type Redis struct {
	Enabled  bool     `json:"enabled"`
	Address  string   `json:"address"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Database int      `json:"database"`
	Sentinel Sentinel `json:"sentinel"`
}

type NATS struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

type HTTPListener struct {
	IPV4Host string `json:"ipv4_host" yaml:"ipv4_host"`
	IPV6Host string `json:"ipv6_host" yaml:"ipv6_host"`
	Port     uint16 `json:"port"`
}

type Tracing struct {
	Enabled      bool   `json:"enabled"`
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

type PProf struct {
	Enabled bool `json:"enabled"`
}

type Metrics struct {
	HTTPListener `yaml:",inline"`
	Enabled      bool `json:"enabled"`
}

type HTTP struct {
	HTTPListener   `yaml:",inline"`
	Tracing        Tracing  `json:"tracing"`
	PProf          PProf    `json:"pprof"`
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
	Metrics        Metrics  `json:"metrics"`
	CORSHosts      []string `json:"cors_hosts" yaml:"cors_hosts"`
	SecureCookies  bool     `json:"secure_cookies" yaml:"secure_cookies"`
}

//nolint:golint,gochecknoglobals
var (
	ConfigFileKey                         = "config"
	HTTPIPV4HostKey                       = "http.ipv4_host"
	HTTPIPV6HostKey                       = "http.ipv6_host"
	HTTPPortKey                           = "http.port"
	HTTPTracingEnabledKey                 = "http.tracing.enabled"
	HTTPTracingOTLPEndKey                 = "http.tracing.otlp_endpoint"
	HTTPPProfEnabledKey                   = "http.pprof.enabled"
	HTTPTrustedProxiesKey                 = "http.trusted_proxies"
	HTTPMetricsEnabledKey                 = "http.metrics.enabled"
	HTTPMetricsIPV4HostKey                = "http.metrics.ipv4_host"
	HTTPMetricsIPV6HostKey                = "http.metrics.ipv6_host"
	HTTPMetricsPortKey                    = "http.metrics.port"
	HTTPCORSHostsKey                      = "http.cors_hosts"
	HTTPSecureCookiesKey                  = "http.secure_cookies"
	PersistenceDatabaseDriverKey          = "persistence.database.driver"
	PersistenceDatabaseDatabaseKey        = "persistence.database.database"
	PersistenceDatabaseUsernameKey        = "persistence.database.username"
	PersistenceDatabasePasswordKey        = "persistence.database.password"
	PersistenceDatabaseHostKey            = "persistence.database.host"
	PersistenceDatabasePortKey            = "persistence.database.port"
	PersistenceDatabaseExtraParametersKey = "persistence.database.extra_parameters"
	PersistenceUploadsDriverKey           = "persistence.uploads.driver"
	PersistenceUploadsDirectoryKey        = "persistence.uploads.directory"
	PersistenceUploadsMaxSizeKey          = "persistence.uploads.max_size"
	PersistenceUploadsS3RegionKey         = "persistence.uploads.s3.region"
	PersistenceUploadsS3BucketKey         = "persistence.uploads.s3.bucket"
	PersistenceUploadsS3EndpointKey       = "persistence.uploads.s3.endpoint"
	RegistrationEnabledKey                = "registration.enabled"
	//nolint:golint,gosec
	SessionSecretKey           = "session.secret"
	SessionLifetimeKey         = "session.lifetime"
	RedisEnabledKey            = "redis.enabled"
	RedisAddressKey            = "redis.address"
	RedisUsernameKey           = "redis.username"
	RedisPasswordKey           = "redis.password"
	RedisDatabaseKey           = "redis.database"
	RedisSentinelEnabledKey    = "redis.sentinel.enabled"
	RedisSentinelAddressesKey  = "redis.sentinel.addresses"
	RedisSentinelMasterNameKey = "redis.sentinel.master_name"
	RedisSentinelPasswordKey   = "redis.sentinel.password"
	NATSEnabledKey             = "nats.enabled"
	NATSURLKey                 = "nats.url"
)

const (
	DefaultConfigPath                  = "config.yaml"
	DefaultHTTPIPV4Host                = "0.0.0.0"
	DefaultHTTPIPV6Host                = "::"
	DefaultHTTPPort                    = 8080
	DefaultHTTPMetricsIPV4Host         = "127.0.0.1"
	DefaultHTTPMetricsIPV6Host         = "::1"
	DefaultHTTPMetricsPort             = 8081
	DefaultPersistenceDatabaseDriver   = DatabaseDriverSQLite
	DefaultPersistenceDatabaseDatabase = "crashula.db"
	DefaultPersistenceUploadsDriver    = UploadsDriverFilesystem
	DefaultPersistenceUploadsDirectory = "uploads/"
	DefaultPersistenceUploadsMaxSize   = 10 << 20
	DefaultRegistrationEnabled         = false
	DefaultSessionLifetime             = 14 * 24 * time.Hour
	DefaultRedisAddress                = "localhost:6379"
	DefaultNATSURL                     = "nats://localhost:4222"
)

func RegisterFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(ConfigFileKey, "c", DefaultConfigPath, "Config file path")
	cmd.PersistentFlags().String(HTTPIPV4HostKey, DefaultHTTPIPV4Host, "HTTP server IPv4 host")
	cmd.PersistentFlags().String(HTTPIPV6HostKey, DefaultHTTPIPV6Host, "HTTP server IPv6 host")
	cmd.PersistentFlags().Uint16(HTTPPortKey, DefaultHTTPPort, "HTTP server port")
	cmd.PersistentFlags().Bool(HTTPTracingEnabledKey, false, "Enable Open Telemetry tracing")
	cmd.PersistentFlags().String(HTTPTracingOTLPEndKey, "", "Open Telemetry endpoint")
	cmd.PersistentFlags().Bool(HTTPPProfEnabledKey, false, "Enable pprof")
	cmd.PersistentFlags().StringSlice(HTTPTrustedProxiesKey, []string{}, "Comma-separated list of trusted proxies")
	cmd.PersistentFlags().Bool(HTTPMetricsEnabledKey, false, "Enable metrics server")
	cmd.PersistentFlags().String(HTTPMetricsIPV4HostKey, DefaultHTTPMetricsIPV4Host, "Metrics server IPv4 host")
	cmd.PersistentFlags().String(HTTPMetricsIPV6HostKey, DefaultHTTPMetricsIPV6Host, "Metrics server IPv6 host")
	cmd.PersistentFlags().Uint16(HTTPMetricsPortKey, DefaultHTTPMetricsPort, "Metrics server port")
	cmd.PersistentFlags().StringSlice(HTTPCORSHostsKey, []string{}, "Comma-separated list of CORS hosts")
	cmd.PersistentFlags().Bool(HTTPSecureCookiesKey, false, "Mark session cookies as Secure")
	cmd.PersistentFlags().String(PersistenceDatabaseDriverKey, string(DefaultPersistenceDatabaseDriver), "Database driver")
	cmd.PersistentFlags().String(PersistenceDatabaseDatabaseKey, DefaultPersistenceDatabaseDatabase, "Database name or path")
	cmd.PersistentFlags().String(PersistenceDatabaseUsernameKey, "", "Database username")
	cmd.PersistentFlags().String(PersistenceDatabasePasswordKey, "", "Database password")
	cmd.PersistentFlags().String(PersistenceDatabaseHostKey, "", "Database host")
	cmd.PersistentFlags().Uint16(PersistenceDatabasePortKey, 0, "Database port")
	cmd.PersistentFlags().String(PersistenceDatabaseExtraParametersKey, "", "Database extra parameters")
	cmd.PersistentFlags().String(PersistenceUploadsDriverKey, string(DefaultPersistenceUploadsDriver), "Uploads storage driver")
	cmd.PersistentFlags().String(PersistenceUploadsDirectoryKey, DefaultPersistenceUploadsDirectory, "Uploads directory")
	cmd.PersistentFlags().Int64(PersistenceUploadsMaxSizeKey, DefaultPersistenceUploadsMaxSize, "Maximum crash log upload size in bytes")
	cmd.PersistentFlags().String(PersistenceUploadsS3RegionKey, "", "Uploads S3 region")
	cmd.PersistentFlags().String(PersistenceUploadsS3BucketKey, "", "Uploads S3 bucket")
	cmd.PersistentFlags().String(PersistenceUploadsS3EndpointKey, "", "Uploads S3 endpoint")
	cmd.PersistentFlags().Bool(RegistrationEnabledKey, DefaultRegistrationEnabled, "Enable registration")
	cmd.PersistentFlags().String(SessionSecretKey, "", "Session signing secret")
	cmd.PersistentFlags().Duration(SessionLifetimeKey, DefaultSessionLifetime, "Session lifetime")
	cmd.PersistentFlags().Bool(RedisEnabledKey, false, "Enable Redis session revocation")
	cmd.PersistentFlags().String(RedisAddressKey, DefaultRedisAddress, "Redis address")
	cmd.PersistentFlags().String(RedisUsernameKey, "", "Redis username")
	cmd.PersistentFlags().String(RedisPasswordKey, "", "Redis password")
	cmd.PersistentFlags().Int(RedisDatabaseKey, 0, "Redis database")
	cmd.PersistentFlags().Bool(RedisSentinelEnabledKey, false, "Enable Redis sentinel")
	cmd.PersistentFlags().StringSlice(RedisSentinelAddressesKey, []string{}, "Comma-separated list of Redis sentinel addresses")
	cmd.PersistentFlags().String(RedisSentinelMasterNameKey, "", "Redis sentinel master name")
	cmd.PersistentFlags().String(RedisSentinelPasswordKey, "", "Redis sentinel password")
	cmd.PersistentFlags().Bool(NATSEnabledKey, false, "Enable NATS report events")
	cmd.PersistentFlags().String(NATSURLKey, DefaultNATSURL, "NATS server URL")
}

var (
	ErrSessionSecretRequired   = errors.New("Session secret is required")
	ErrOTLPEndpointRequired    = errors.New("OTLP endpoint is required when tracing is enabled")
	ErrDBHostRequired          = errors.New("Database host is required")
	ErrDBDatabaseRequired      = errors.New("Database name is required")
	ErrDatabaseDriverRequired  = errors.New("Database driver is required")
	ErrDatabaseDriverInvalid   = errors.New("Database driver must be one of sqlite, mysql, postgres")
	ErrUploadsDriverInvalid    = errors.New("Uploads driver must be one of filesystem, s3")
	ErrUploadsDirRequired      = errors.New("Uploads directory is required")
	ErrUploadsMaxSizeInvalid   = errors.New("Uploads max size must be positive")
	ErrS3BucketRequired        = errors.New("S3 bucket is required")
	ErrSessionLifetimeInvalid  = errors.New("Session lifetime must be positive")
	ErrRedisAddressRequired    = errors.New("Redis address is required")
	ErrRedisSentinelIncomplete = errors.New("Redis sentinel requires addresses and a master name")
	ErrNATSURLRequired         = errors.New("NATS URL is required")
)

func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return ErrSessionSecretRequired
	}
	if c.Session.Lifetime <= 0 {
		return ErrSessionLifetimeInvalid
	}
	if c.HTTP.Tracing.Enabled && c.HTTP.Tracing.OTLPEndpoint == "" {
		return ErrOTLPEndpointRequired
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	switch c.Persistence.Uploads.Driver {
	case UploadsDriverFilesystem:
		if c.Persistence.Uploads.Directory == "" {
			return ErrUploadsDirRequired
		}
	case UploadsDriverS3:
		if c.Persistence.Uploads.S3.Bucket == "" {
			return ErrS3BucketRequired
		}
	default:
		return ErrUploadsDriverInvalid
	}
	if c.Persistence.Uploads.MaxSize <= 0 {
		return ErrUploadsMaxSizeInvalid
	}
	if c.Redis.Enabled {
		if c.Redis.Sentinel.Enabled {
			if len(c.Redis.Sentinel.Addresses) == 0 || c.Redis.Sentinel.MasterName == "" {
				return ErrRedisSentinelIncomplete
			}
		} else if c.Redis.Address == "" {
			return ErrRedisAddressRequired
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return ErrNATSURLRequired
	}

	return nil
}

// ValidateDatabase checks only the database settings. Administrative
// subcommands that never serve HTTP use it instead of Validate.
func (c *Config) ValidateDatabase() error {
	if c.Persistence.Database.Driver == "" {
		return ErrDatabaseDriverRequired
	}
	switch c.Persistence.Database.Driver {
	case DatabaseDriverSQLite, DatabaseDriverMySQL, DatabaseDriverPostgres:
	default:
		return ErrDatabaseDriverInvalid
	}
	if c.Persistence.Database.Driver != DatabaseDriverSQLite && c.Persistence.Database.Host == "" {
		return ErrDBHostRequired
	}
	if c.Persistence.Database.Database == "" {
		return ErrDBDatabaseRequired
	}
	return nil
}

func LoadConfig(cmd *cobra.Command) (*Config, error) {
	var config Config

	// Load flags from envs
	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if ctx.Err() != nil {
			return
		}
		optName := strings.ReplaceAll(strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"), ".", "__")
		if val, ok := os.LookupEnv(optName); !f.Changed && ok {
			if err := f.Value.Set(val); err != nil {
				cancel(err)
			}
			f.Changed = true
		}
	})
	if ctx.Err() != nil {
		return &config, fmt.Errorf("failed to load env: %w", context.Cause(ctx))
	}

	configPath, err := cmd.Flags().GetString(ConfigFileKey)
	if err != nil {
		return &config, fmt.Errorf("failed to get config path: %w", err)
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return &config, fmt.Errorf("failed to read config: %w", err)
		} else if err == nil {
			if err := yaml.Unmarshal(data, &config); err != nil {
				return &config, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	err = overrideFlags(&config, cmd)
	if err != nil {
		return &config, fmt.Errorf("failed to override flags: %w", err)
	}

	// Defaults
	if config.HTTP.IPV4Host == "" {
		config.HTTP.IPV4Host = DefaultHTTPIPV4Host
	}
	if config.HTTP.IPV6Host == "" {
		config.HTTP.IPV6Host = DefaultHTTPIPV6Host
	}
	if config.HTTP.Port == 0 {
		config.HTTP.Port = DefaultHTTPPort
	}
	if config.HTTP.Metrics.IPV4Host == "" {
		config.HTTP.Metrics.IPV4Host = DefaultHTTPMetricsIPV4Host
	}
	if config.HTTP.Metrics.IPV6Host == "" {
		config.HTTP.Metrics.IPV6Host = DefaultHTTPMetricsIPV6Host
	}
	if config.HTTP.Metrics.Port == 0 {
		config.HTTP.Metrics.Port = DefaultHTTPMetricsPort
	}
	if config.Persistence.Database.Driver == "" {
		config.Persistence.Database.Driver = DefaultPersistenceDatabaseDriver
	}
	if config.Persistence.Database.Database == "" {
		config.Persistence.Database.Database = DefaultPersistenceDatabaseDatabase
	}
	if config.Persistence.Uploads.Driver == "" {
		config.Persistence.Uploads.Driver = DefaultPersistenceUploadsDriver
	}
	if config.Persistence.Uploads.Directory == "" {
		config.Persistence.Uploads.Directory = DefaultPersistenceUploadsDirectory
	}
	if config.Persistence.Uploads.MaxSize == 0 {
		config.Persistence.Uploads.MaxSize = DefaultPersistenceUploadsMaxSize
	}
	if config.Session.Lifetime == 0 {
		config.Session.Lifetime = DefaultSessionLifetime
	}
	if config.Redis.Address == "" {
		config.Redis.Address = DefaultRedisAddress
	}
	if config.NATS.URL == "" {
		config.NATS.URL = DefaultNATSURL
	}

	return &config, nil
}

func overrideFlags(config *Config, cmd *cobra.Command) error {
	flags := cmd.Flags()
	var err error

	stringFlags := map[string]*string{
		HTTPIPV4HostKey:                       &config.HTTP.IPV4Host,
		HTTPIPV6HostKey:                       &config.HTTP.IPV6Host,
		HTTPTracingOTLPEndKey:                 &config.HTTP.Tracing.OTLPEndpoint,
		HTTPMetricsIPV4HostKey:                &config.HTTP.Metrics.IPV4Host,
		HTTPMetricsIPV6HostKey:                &config.HTTP.Metrics.IPV6Host,
		PersistenceDatabaseDatabaseKey:        &config.Persistence.Database.Database,
		PersistenceDatabaseUsernameKey:        &config.Persistence.Database.Username,
		PersistenceDatabasePasswordKey:        &config.Persistence.Database.Password,
		PersistenceDatabaseHostKey:            &config.Persistence.Database.Host,
		PersistenceDatabaseExtraParametersKey: &config.Persistence.Database.ExtraParameters,
		PersistenceUploadsDirectoryKey:        &config.Persistence.Uploads.Directory,
		PersistenceUploadsS3RegionKey:         &config.Persistence.Uploads.S3.Region,
		PersistenceUploadsS3BucketKey:         &config.Persistence.Uploads.S3.Bucket,
		PersistenceUploadsS3EndpointKey:       &config.Persistence.Uploads.S3.Endpoint,
		SessionSecretKey:                      &config.Session.Secret,
		RedisAddressKey:                       &config.Redis.Address,
		RedisUsernameKey:                      &config.Redis.Username,
		RedisPasswordKey:                      &config.Redis.Password,
		RedisSentinelMasterNameKey:            &config.Redis.Sentinel.MasterName,
		RedisSentinelPasswordKey:              &config.Redis.Sentinel.Password,
		NATSURLKey:                            &config.NATS.URL,
	}
	for key, dest := range stringFlags {
		if flags.Changed(key) {
			*dest, err = flags.GetString(key)
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", key, err)
			}
		}
	}

	boolFlags := map[string]*bool{
		HTTPTracingEnabledKey:   &config.HTTP.Tracing.Enabled,
		HTTPPProfEnabledKey:     &config.HTTP.PProf.Enabled,
		HTTPMetricsEnabledKey:   &config.HTTP.Metrics.Enabled,
		HTTPSecureCookiesKey:    &config.HTTP.SecureCookies,
		RegistrationEnabledKey:  &config.Registration.Enabled,
		RedisEnabledKey:         &config.Redis.Enabled,
		RedisSentinelEnabledKey: &config.Redis.Sentinel.Enabled,
		NATSEnabledKey:          &config.NATS.Enabled,
	}
	for key, dest := range boolFlags {
		if flags.Changed(key) {
			*dest, err = flags.GetBool(key)
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", key, err)
			}
		}
	}

	portFlags := map[string]*uint16{
		HTTPPortKey:                &config.HTTP.Port,
		HTTPMetricsPortKey:         &config.HTTP.Metrics.Port,
		PersistenceDatabasePortKey: &config.Persistence.Database.Port,
	}
	for key, dest := range portFlags {
		if flags.Changed(key) {
			*dest, err = flags.GetUint16(key)
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", key, err)
			}
		}
	}

	sliceFlags := map[string]*[]string{
		HTTPTrustedProxiesKey:     &config.HTTP.TrustedProxies,
		HTTPCORSHostsKey:          &config.HTTP.CORSHosts,
		RedisSentinelAddressesKey: &config.Redis.Sentinel.Addresses,
	}
	for key, dest := range sliceFlags {
		if flags.Changed(key) {
			*dest, err = flags.GetStringSlice(key)
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", key, err)
			}
		}
	}

	if flags.Changed(PersistenceDatabaseDriverKey) {
		drvr, err := flags.GetString(PersistenceDatabaseDriverKey)
		if err != nil {
			return fmt.Errorf("failed to get database driver: %w", err)
		}
		config.Persistence.Database.Driver = DatabaseDriver(strings.ToLower(drvr))
	}

	if flags.Changed(PersistenceUploadsDriverKey) {
		drvr, err := flags.GetString(PersistenceUploadsDriverKey)
		if err != nil {
			return fmt.Errorf("failed to get uploads driver: %w", err)
		}
		config.Persistence.Uploads.Driver = UploadsDriver(strings.ToLower(drvr))
	}

	if flags.Changed(PersistenceUploadsMaxSizeKey) {
		config.Persistence.Uploads.MaxSize, err = flags.GetInt64(PersistenceUploadsMaxSizeKey)
		if err != nil {
			return fmt.Errorf("failed to get uploads max size: %w", err)
		}
	}

	if flags.Changed(SessionLifetimeKey) {
		config.Session.Lifetime, err = flags.GetDuration(SessionLifetimeKey)
		if err != nil {
			return fmt.Errorf("failed to get session lifetime: %w", err)
		}
	}

	if flags.Changed(RedisDatabaseKey) {
		config.Redis.Database, err = flags.GetInt(RedisDatabaseKey)
		if err != nil {
			return fmt.Errorf("failed to get Redis database: %w", err)
		}
	}

	return nil
}
