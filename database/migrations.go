package database

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/GabeYou/Hack-The-Valley-2025/config"
	"github.com/GabeYou/Hack-The-Valley-2025/models"

	"gorm.io/gorm"
)

// BackupDatabase writes a SQL dump with mysqldump. Only MySQL is supported.
func BackupDatabase(ctx context.Context, cfg config.Config, outPath string) error {
	if cfg.DBDriver != "mysql" {
		return fmt.Errorf("backup is only supported for mysql (driver %q)", cfg.DBDriver)
	}
	if _, err := exec.LookPath("mysqldump"); err != nil {
		return fmt.Errorf("mysqldump not found in PATH: %w", err)
	}

	args := []string{"-h", cfg.DBHost, "-P", cfg.DBPort, "-u", cfg.DBUser, "--single-transaction"}
	if extra := strings.Fields(os.Getenv("DB_BACKUP_FLAGS")); len(extra) > 0 {
		args = append(args, extra...)
	}
	args = append(args, cfg.DBName)

	cmd := exec.CommandContext(ctx, "mysqldump", args...)
	// keep the password off the process list
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+cfg.DBPass)
	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()
	cmd.Stdout = outFile
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mysqldump failed: %w", err)
	}
	return nil
}

// Migrate brings the schema up to date for every model.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		// the sqlite migrator opens its own connection for some alterations
		return db.AutoMigrate(models.All()...)
	}
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.AutoMigrate(models.All()...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
