package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	VerifyPolicyPoster = "poster"
	VerifyPolicyPublic = "public"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	Port        string
	ServiceName string

	DBDriver          string
	DBDSN             string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPass            string
	DBName            string
	DBParams          string
	DBTLS             string
	DBTLSVerify       bool
	DBTLSCAPath       string
	DBTLSClientCert   string
	DBTLSClientKey    string
	DBConnectRetries  int
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	TokenTTL     time.Duration
	CookieSecure bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins []string
	TrustedProxies     []string
	MaxBodyBytes       int64
	MaxUploadBytes     int64
	RequestTimeout     time.Duration
	RateLimitRPM       int
	AuthRateLimitRPM   int

	VerifyPolicy  string
	SignupCredits int64
	NodeID        int64

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string

	TelemetryEndpoint string
	TelemetryInsecure bool
	MetricsEnabled    bool
}

// Load reads configuration from environment variables with sane defaults.
// A local .env file is read first but never overrides variables already set.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: strings.ToLower(getEnv("ENV", "development")),
		Port:        getEnv("PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "bountyboard-api"),

		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBDSN:             strings.TrimSpace(os.Getenv("DB_DSN")),
		DBHost:            getEnv("DB_HOST", "127.0.0.1"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBUser:            getEnv("DB_USER", "root"),
		DBPass:            os.Getenv("DB_PASS"),
		DBName:            getEnv("DB_NAME", "bountyboard"),
		DBParams:          getEnv("DB_PARAMS", "charset=utf8mb4&parseTime=True&loc=UTC"),
		DBTLS:             strings.ToLower(getEnv("DB_TLS", "preferred")),
		DBTLSVerify:       getBool("DB_TLS_VERIFY", false),
		DBTLSCAPath:       os.Getenv("DB_TLS_CA_PATH"),
		DBTLSClientCert:   os.Getenv("DB_TLS_CLIENT_CERT"),
		DBTLSClientKey:    os.Getenv("DB_TLS_CLIENT_KEY"),
		DBConnectRetries:  getInt("DB_CONNECT_RETRIES", 5),
		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: time.Duration(getInt("DB_CONN_MAX_LIFETIME", 3600)) * time.Second,

		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTIssuer:    os.Getenv("JWT_ISS"),
		JWTAudience:  os.Getenv("JWT_AUD"),
		TokenTTL:     getDuration("TOKEN_TTL", 7*24*time.Hour),
		CookieSecure: getBool("COOKIE_SECURE", false),

		RedisAddr:     strings.ReplaceAll(strings.TrimSpace(os.Getenv("REDIS_ADDR")), " ", ""),
		RedisPassword: os.Getenv("REDIS_PASS"),
		RedisDB:       getInt("REDIS_DB", 0),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		TrustedProxies:     getList("TRUSTED_PROXIES", nil),
		MaxBodyBytes:       int64(getInt("MAX_BODY_BYTES", 1<<20)),
		MaxUploadBytes:     int64(getInt("MAX_UPLOAD_BYTES", 10<<20)),
		RequestTimeout:     getDuration("REQ_TIMEOUT", 15*time.Second),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 60),

		VerifyPolicy:  strings.ToLower(getEnv("VERIFY_POLICY", VerifyPolicyPoster)),
		SignupCredits: int64(getInt("SIGNUP_CREDITS", 0)),
		NodeID:        int64(getInt("NODE_ID", 1)),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2Bucket:          os.Getenv("R2_BUCKET_NAME"),

		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		MetricsEnabled:    getBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration error.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be one of mysql, postgres, sqlite (got %q)", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required when DB_DRIVER=sqlite")
	}
	switch c.VerifyPolicy {
	case VerifyPolicyPoster, VerifyPolicyPublic:
	default:
		return fmt.Errorf("VERIFY_POLICY must be %q or %q (got %q)", VerifyPolicyPoster, VerifyPolicyPublic, c.VerifyPolicy)
	}
	if c.SignupCredits < 0 {
		return fmt.Errorf("SIGNUP_CREDITS must not be negative")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be between 0 and 1023")
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// ArchiveEnabled reports whether proof images are mirrored to object storage.
func (c Config) ArchiveEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2Bucket != ""
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
