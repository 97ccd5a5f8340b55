package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chxlky/crm-backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by store lookups when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Open connects to the SQLite database at dbPath and migrates every model.
func Open(dbPath string) (*gorm.DB, error) {
	// SQLite only honours ON DELETE CASCADE with foreign keys switched on,
	// and the pragma is per connection.
	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}

	dbFile := sqlite.Open(dsn)
	db, err := gorm.Open(dbFile, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.OAuthAccount{},
		&models.SoundFile{},
		&models.PhoneList{},
		&models.Company{},
		&models.KanbanColumn{},
		&models.KanbanCard{},
		&models.CalendarEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func Init(dbPath string) *gorm.DB {
	db, err := Open(dbPath)
	if err != nil {
		zap.L().Fatal("Failed to initialise database", zap.Error(err))
	}

	zap.L().Info("Database initialised and migrated successfully", zap.String("path", dbPath))

	return db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
