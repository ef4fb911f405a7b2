package database

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/GabeYou/Hack-The-Valley-2025/config"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// pure-Go driver registered as "sqlite"
	_ "modernc.org/sqlite"
)

// Connect opens the configured store with pooling and retry.
func Connect(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, safeDSN, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database connecting", zap.String("driver", cfg.DBDriver), zap.String("dsn", safeDSN))

	gormCfg := &gorm.Config{
		Logger:         gormLogger(cfg),
		TranslateError: true,
	}

	retries := cfg.DBConnectRetries
	if retries <= 0 {
		retries = 1
	}
	var db *gorm.DB
	backoff := time.Second
	for attempt := 0; attempt < retries; attempt++ {
		db, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}
		log.Warn("database connect failed", zap.Int("attempt", attempt+1), zap.Error(err))
		time.Sleep(backoff)
		backoff *= 2
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		// one writer; keeps FOR UPDATE-less transactions serialized
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	}

	if err := pingWithTimeout(sqlDB, 5*time.Second); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// OpenSQLite opens an SQLite database through the modernc driver.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func dialectorFor(cfg config.Config) (gorm.Dialector, string, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: cfg.DBDSN}), cfg.DBDSN, nil
	case "postgres":
		dsn := cfg.DBDSN
		if dsn == "" {
			sslmode := "require"
			if cfg.DBTLS == "skip" || cfg.DBTLS == "false" {
				sslmode = "disable"
			} else if cfg.DBTLSVerify {
				sslmode = "verify-full"
			}
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=10 TimeZone=UTC",
				cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName, sslmode)
			if cfg.DBTLSCAPath != "" {
				dsn += " sslrootcert=" + cfg.DBTLSCAPath
			}
		}
		return postgres.Open(dsn), redact(dsn, cfg.DBPass), nil
	default:
		dsn, err := mysqlDSN(cfg)
		if err != nil {
			return nil, "", err
		}
		return gormmysql.Open(dsn), redact(dsn, cfg.DBPass), nil
	}
}

func mysqlDSN(cfg config.Config) (string, error) {
	dsn := cfg.DBDSN
	if dsn == "" {
		params := cfg.DBParams
		if !strings.Contains(params, "tls=") {
			switch cfg.DBTLS {
			case "true", "preferred":
				if cfg.DBTLSVerify {
					params += "&tls=custom"
				} else {
					params += "&tls=true"
				}
			}
		}
		for _, p := range []string{"timeout", "readTimeout", "writeTimeout"} {
			if !strings.Contains(params, p+"=") {
				params += "&" + p + "=10s"
			}
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, params)
	}

	if strings.Contains(dsn, "tls=custom") {
		tlsCfg := &tls.Config{}
		if cfg.DBTLSCAPath != "" {
			caCert, err := os.ReadFile(cfg.DBTLSCAPath)
			if err != nil {
				return "", fmt.Errorf("failed reading DB TLS CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return "", errors.New("failed to append CA certs")
			}
			tlsCfg.RootCAs = pool
		}
		if cfg.DBTLSClientCert != "" && cfg.DBTLSClientKey != "" {
			cert, err := tls.LoadX509KeyPair(cfg.DBTLSClientCert, cfg.DBTLSClientKey)
			if err != nil {
				return "", fmt.Errorf("failed to load client cert/key: %w", err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}
		if err := mysqldriver.RegisterTLSConfig("custom", tlsCfg); err != nil {
			return "", err
		}
	}
	return dsn, nil
}

func gormLogger(cfg config.Config) logger.Interface {
	if cfg.IsDevelopment() {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}

func redact(dsn, pass string) string {
	if pass == "" {
		return dsn
	}
	return strings.Replace(dsn, pass, "******", 1)
}

func pingWithTimeout(db *sql.DB, timeout time.Duration) error {
	ch := make(chan error, 1)
	go func() {
		ch <- db.Ping()
	}()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("ping timeout after %s", timeout)
	}
}
