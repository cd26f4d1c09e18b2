package migration

import (
	"fmt"

	"go.uber.org/zap"

	appconfig "github.com/ruipedro-pinheiro/CHIKA/config"
	"github.com/ruipedro-pinheiro/CHIKA/internal/database"
)

// NewMigratorFromDatabaseConfig opens the configured database through gorm
// and builds a migrator on its handle.
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig, logger *zap.Logger) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}
	// 迁移与 gorm 使用同一套驱动，驱动名需要规范化
	dbCfg.Driver = string(dbType)

	gormDB, err := database.Open(dbCfg, logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	m, err := NewMigrator(sqlDB, Config{DatabaseType: dbType})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return m, nil
}
