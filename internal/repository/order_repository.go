// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"virology-test-service/internal/domain"
)

// persistOrderAttempts はトークン衝突時の再生成を含む挿入試行の上限。
const persistOrderAttempts = 3

// TestOrderModel はtest_ordersテーブルのgormモデル。
type TestOrderModel struct {
	TestResultPollingToken      string    `gorm:"column:test_result_polling_token;type:char(36);primaryKey"`
	DiagnosisKeySubmissionToken string    `gorm:"type:char(36);not null;uniqueIndex:uk_submission_token"`
	CtaToken                    string    `gorm:"type:char(8);not null;index:idx_cta_token"`
	ExpireAt                    time.Time `gorm:"type:datetime(6);not null;index:idx_order_expire_at"`
	CreatedAt                   time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (TestOrderModel) TableName() string {
	return "test_orders"
}

// TestResultModel はtest_resultsテーブルのgormモデル。
type TestResultModel struct {
	PollingToken string    `gorm:"column:polling_token;type:char(36);primaryKey"`
	TestEndDate  string    `gorm:"type:varchar(32)"`
	Result       string    `gorm:"type:varchar(8)"`
	Status       string    `gorm:"type:enum('pending','available');not null;default:'pending'"`
	ExpireAt     time.Time `gorm:"type:datetime(6);not null;index:idx_result_expire_at"`
	CreatedAt    time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (TestResultModel) TableName() string {
	return "test_results"
}

// toDomain はモデルをドメインエンティティに変換する。
func (m *TestResultModel) toDomain() *domain.TestResult {
	return &domain.TestResult{
		PollingToken: m.PollingToken,
		TestEndDate:  m.TestEndDate,
		Result:       domain.TestResultValue(m.Result),
		Status:       domain.TestResultStatus(m.Status),
	}
}

// OrderRepository は注文・検査結果のデータアクセスを提供する。
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository は新しいOrderRepositoryを生成する。
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetTestResult は指定されたポーリングトークンの検査結果を取得する。
// レコードがない場合は (nil, nil) を返す。
func (r *OrderRepository) GetTestResult(ctx context.Context, pollingToken string) (*domain.TestResult, error) {
	var model TestResultModel
	err := r.db.WithContext(ctx).
		Where("polling_token = ?", pollingToken).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to get test result",
			"operation", "get_test_result",
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// PersistTestOrder は注文レコードとpending状態の結果レコードを同一トランザクションで保存する。
// tokensサプライヤはコミット試行のたびに呼び出され、主キー衝突時は新しいトークンで再試行する。
func (r *OrderRepository) PersistTestOrder(ctx context.Context, tokens func() domain.TestOrderTokens, expireAt time.Time) (domain.TestOrderTokens, error) {
	var lastErr error
	for attempt := 0; attempt < persistOrderAttempts; attempt++ {
		t := tokens()
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			order := &TestOrderModel{
				TestResultPollingToken:      t.TestResultPollingToken,
				DiagnosisKeySubmissionToken: t.DiagnosisKeySubmissionToken,
				CtaToken:                    t.CtaToken,
				ExpireAt:                    expireAt,
			}
			if err := tx.Create(order).Error; err != nil {
				return err
			}
			result := &TestResultModel{
				PollingToken: t.TestResultPollingToken,
				Status:       string(domain.TestResultStatusPending),
				ExpireAt:     expireAt,
			}
			return tx.Create(result).Error
		})
		if err == nil {
			return t, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			lastErr = err
			continue
		}
		slog.ErrorContext(ctx, "failed to persist test order",
			"operation", "persist_test_order",
			"error", err,
		)
		return domain.TestOrderTokens{}, err
	}
	slog.ErrorContext(ctx, "failed to persist test order after retries",
		"operation", "persist_test_order",
		"attempts", persistOrderAttempts,
		"error", lastErr,
	)
	return domain.TestOrderTokens{}, lastErr
}

// MarkForDeletion は注文・結果レコードの削除予定時刻を更新する。
func (r *OrderRepository) MarkForDeletion(ctx context.Context, ttl domain.VirologyTimeToLive) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&TestResultModel{}).
			Where("polling_token = ?", ttl.TestResultPollingToken).
			Update("expire_at", ttl.ExpireAt).Error; err != nil {
			return err
		}
		return tx.Model(&TestOrderModel{}).
			Where("diagnosis_key_submission_token = ?", ttl.DiagnosisKeySubmissionToken).
			Update("expire_at", ttl.ExpireAt).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark for deletion",
			"operation", "mark_for_deletion",
			"error", err,
		)
		return err
	}
	return nil
}

// DeleteExpired は削除予定時刻を過ぎた注文・結果レコードを削除し、削除行数を返す。
func (r *OrderRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64

	res := r.db.WithContext(ctx).
		Where("expire_at <= ?", now).
		Delete(&TestOrderModel{})
	if res.Error != nil {
		slog.ErrorContext(ctx, "failed to delete expired test orders",
			"operation", "delete_expired",
			"error", res.Error,
		)
		return 0, res.Error
	}
	deleted += res.RowsAffected

	res = r.db.WithContext(ctx).
		Where("expire_at <= ?", now).
		Delete(&TestResultModel{})
	if res.Error != nil {
		slog.ErrorContext(ctx, "failed to delete expired test results",
			"operation", "delete_expired",
			"error", res.Error,
		)
		return deleted, res.Error
	}
	deleted += res.RowsAffected

	return deleted, nil
}
