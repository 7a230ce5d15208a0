package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xo/dburl"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/greg-czaplicki/parlay-picker-sub005/models"
)

// Connect opens the database named by a URL (postgres://, mysql://,
// sqlserver:// or sqlite:/path). The URL scheme picks the GORM dialector.
func Connect(databaseURL string) (*gorm.DB, error) {
	u, err := dburl.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	var dialector gorm.Dialector
	switch u.Driver {
	case "postgres":
		dialector = postgres.Open(u.DSN)
	case "mysql":
		dsn := u.DSN
		if !strings.Contains(dsn, "parseTime") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "charset=utf8mb4&parseTime=True&loc=Local"
		}
		dialector = mysql.Open(dsn)
	case "sqlserver":
		dialector = sqlserver.Open(u.DSN)
	case "sqlite3":
		dialector = sqlite.Open(u.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", u.Driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return gormDB, nil
}

// Migrate creates or updates the settlement tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tournament{},
		&models.Matchup{},
		&models.Parlay{},
		&models.ParlayPick{},
		&models.SettlementRun{},
		&models.ErrorLog{},
	)
}
