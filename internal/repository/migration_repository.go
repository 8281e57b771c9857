package repository

import (
	"context"
	"log/slog"
	"time"

	"virology-test-service/internal/domain"

	"gorm.io/gorm"
)

// SchemaMigrationModel は適用済みマイグレーション履歴の行を表す。
type SchemaMigrationModel struct {
	Version   string    `gorm:"column:version;primaryKey;type:varchar(14)"`
	AppliedAt time.Time `gorm:"column:applied_at;not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (SchemaMigrationModel) TableName() string {
	return "schema_migrations"
}

// MigrationRepository はschema_migrationsテーブルへのアクセスを提供する。
type MigrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository は新しいMigrationRepositoryを生成する。
func NewMigrationRepository(db *gorm.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// FindAllApplied は適用済みマイグレーションをバージョン昇順で返す。
func (r *MigrationRepository) FindAllApplied(ctx context.Context) ([]*domain.Migration, error) {
	var rows []SchemaMigrationModel
	if err := r.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		slog.ErrorContext(ctx, "failed to list applied migrations",
			"operation", "find_all_applied",
			"error", err,
		)
		return nil, err
	}

	migrations := make([]*domain.Migration, 0, len(rows))
	for _, row := range rows {
		appliedAt := row.AppliedAt
		migrations = append(migrations, &domain.Migration{
			Version:   row.Version,
			AppliedAt: &appliedAt,
			Status:    domain.MigrationStatusApplied,
		})
	}

	return migrations, nil
}

// RecordMigration はバージョンを適用済みとして記録する。
func (r *MigrationRepository) RecordMigration(ctx context.Context, version string) error {
	row := &SchemaMigrationModel{Version: version}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		slog.ErrorContext(ctx, "failed to record migration",
			"operation", "record_migration",
			"version", version,
			"error", err,
		)
		return err
	}
	return nil
}

// IsMigrationApplied は指定バージョンが適用済みかどうかを返す。
func (r *MigrationRepository) IsMigrationApplied(ctx context.Context, version string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&SchemaMigrationModel{}).
		Where("version = ?", version).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to check migration status",
			"operation", "is_migration_applied",
			"version", version,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}
