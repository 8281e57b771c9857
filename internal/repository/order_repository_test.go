package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"virology-test-service/internal/domain"
)

// setupTestDB はテスト用のインメモリSQLiteデータベースを作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// テーブルを作成（SQLite用にENUM→TEXT変換）
	sql := `
		CREATE TABLE test_orders (
			test_result_polling_token TEXT PRIMARY KEY,
			diagnosis_key_submission_token TEXT NOT NULL UNIQUE,
			cta_token TEXT NOT NULL,
			expire_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE test_results (
			polling_token TEXT PRIMARY KEY,
			test_end_date TEXT,
			result TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			expire_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX idx_cta_token ON test_orders(cta_token);
		CREATE INDEX idx_order_expire_at ON test_orders(expire_at);
		CREATE INDEX idx_result_expire_at ON test_results(expire_at);
	`

	if err := db.Exec(sql).Error; err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}

	return db
}

func insertTestResult(t *testing.T, db *gorm.DB, pollingToken, endDate, result, status string) {
	t.Helper()
	err := db.Exec(
		"INSERT INTO test_results (polling_token, test_end_date, result, status, expire_at) VALUES (?, ?, ?, ?, ?)",
		pollingToken, endDate, result, status, time.Now().Add(24*time.Hour),
	).Error
	if err != nil {
		t.Fatalf("failed to insert test data: %v", err)
	}
}

func fixedTokens(suffix int) domain.TestOrderTokens {
	return domain.TestOrderTokens{
		DiagnosisKeySubmissionToken: fmt.Sprintf("submission-%d", suffix),
		TestResultPollingToken:      fmt.Sprintf("polling-%d", suffix),
		CtaToken:                    fmt.Sprintf("cta%05d", suffix),
	}
}

func TestOrderRepository_GetTestResult(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOrderRepository(db)

	insertTestResult(t, db, "abc", "2020-04-23T18:34:03Z", "POSITIVE", "available")

	result, err := repo.GetTestResult(ctx, "abc")
	if err != nil {
		t.Fatalf("GetTestResult failed: %v", err)
	}
	if result == nil {
		t.Fatal("want a result, got nil")
	}
	if result.TestEndDate != "2020-04-23T18:34:03Z" {
		t.Errorf("want test end date 2020-04-23T18:34:03Z, got %s", result.TestEndDate)
	}
	if result.Result != domain.TestResultPositive {
		t.Errorf("want result POSITIVE, got %s", result.Result)
	}
	if result.Status != domain.TestResultStatusAvailable {
		t.Errorf("want status available, got %s", result.Status)
	}
}

func TestOrderRepository_GetTestResult_NotFound(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOrderRepository(db)

	result, err := repo.GetTestResult(ctx, "missing")
	if err != nil {
		t.Fatalf("GetTestResult failed: %v", err)
	}
	if result != nil {
		t.Errorf("want nil for unknown token, got %+v", result)
	}
}

func TestOrderRepository_PersistTestOrder(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOrderRepository(db)

	supplierCalls := 0
	supplier := func() domain.TestOrderTokens {
		supplierCalls++
		return fixedTokens(supplierCalls)
	}

	expireAt := time.Now().Add(28 * 24 * time.Hour).UTC()
	tokens, err := repo.PersistTestOrder(ctx, supplier, expireAt)
	if err != nil {
		t.Fatalf("PersistTestOrder failed: %v", err)
	}

	if supplierCalls != 1 {
		t.Errorf("want 1 supplier invocation, got %d", supplierCalls)
	}
	if tokens.TestResultPollingToken != "polling-1" {
		t.Errorf("want polling-1, got %s", tokens.TestResultPollingToken)
	}

	// 注文レコードとpending状態の結果レコードが両方作られていること
	var orderCount int64
	if err := db.Model(&TestOrderModel{}).Where("test_result_polling_token = ?", "polling-1").Count(&orderCount).Error; err != nil {
		t.Fatalf("counting orders failed: %v", err)
	}
	if orderCount != 1 {
		t.Errorf("want 1 order row, got %d", orderCount)
	}

	result, err := repo.GetTestResult(ctx, "polling-1")
	if err != nil {
		t.Fatalf("GetTestResult failed: %v", err)
	}
	if result == nil {
		t.Fatal("want a pending result row, got nil")
	}
	if result.Status != domain.TestResultStatusPending {
		t.Errorf("want status pending, got %s", result.Status)
	}
}

func TestOrderRepository_PersistTestOrder_RegeneratesOnCollision(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOrderRepository(db)

	// 最初のサプライヤ呼び出しと衝突する既存レコード
	if _, err := repo.PersistTestOrder(ctx, func() domain.TestOrderTokens { return fixedTokens(1) }, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("seeding order failed: %v", err)
	}

	supplierCalls := 0
	supplier := func() domain.TestOrderTokens {
		supplierCalls++
		return fixedTokens(supplierCalls)
	}

	tokens, err := repo.PersistTestOrder(ctx, supplier, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PersistTestOrder failed: %v", err)
	}

	if supplierCalls != 2 {
		t.Errorf("want supplier re-invoked on collision, got %d calls", supplierCalls)
	}
	if tokens.TestResultPollingToken != "polling-2" {
		t.Errorf("want regenerated token polling-2, got %s", tokens.TestResultPollingToken)
	}
}

func TestOrderRepository_PersistTestOrder_GivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOrderRepository(db)

	if _, err := repo.PersistTestOrder(ctx, func() domain.TestOrderTokens { return fixedTokens(1) }, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("seeding order failed: %v", err)
	}

	supplierCalls := 0
	supplier := func() domain.TestOrderTokens {
		supplierCalls++
		return fixedTokens(1) // 常に衝突
	}

	if _, err := repo.PersistTestOrder(ctx, supplier, time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if supplierCalls != persistOrderAttempts {
		t.Errorf("want %d supplier invocations, got %d", persistOrderAttempts, supplierCalls)
	}
}

func TestOrderRepository_MarkForDeletion(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOrderRepository(db)

	if _, err := repo.PersistTestOrder(ctx, func() domain.TestOrderTokens { return fixedTokens(1) }, time.Now().Add(28*24*time.Hour)); err != nil {
		t.Fatalf("seeding order failed: %v", err)
	}

	deleteAt := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	err := repo.MarkForDeletion(ctx, domain.VirologyTimeToLive{
		TestResultPollingToken:      "polling-1",
		DiagnosisKeySubmissionToken: "submission-1",
		ExpireAt:                    deleteAt,
	})
	if err != nil {
		t.Fatalf("MarkForDeletion failed: %v", err)
	}

	var order TestOrderModel
	if err := db.Where("test_result_polling_token = ?", "polling-1").First(&order).Error; err != nil {
		t.Fatalf("fetching order failed: %v", err)
	}
	if !order.ExpireAt.Equal(deleteAt) {
		t.Errorf("want order expire_at %v, got %v", deleteAt, order.ExpireAt)
	}

	var result TestResultModel
	if err := db.Where("polling_token = ?", "polling-1").First(&result).Error; err != nil {
		t.Fatalf("fetching result failed: %v", err)
	}
	if !result.ExpireAt.Equal(deleteAt) {
		t.Errorf("want result expire_at %v, got %v", deleteAt, result.ExpireAt)
	}
}

func TestOrderRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOrderRepository(db)

	now := time.Now().UTC()
	if _, err := repo.PersistTestOrder(ctx, func() domain.TestOrderTokens { return fixedTokens(1) }, now.Add(-time.Hour)); err != nil {
		t.Fatalf("seeding expired order failed: %v", err)
	}
	if _, err := repo.PersistTestOrder(ctx, func() domain.TestOrderTokens { return fixedTokens(2) }, now.Add(time.Hour)); err != nil {
		t.Fatalf("seeding live order failed: %v", err)
	}

	deleted, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("want 2 deleted rows (order + result), got %d", deleted)
	}

	// 期限内のレコードは残っていること
	result, err := repo.GetTestResult(ctx, "polling-2")
	if err != nil {
		t.Fatalf("GetTestResult failed: %v", err)
	}
	if result == nil {
		t.Error("live record must survive the sweep")
	}

	// 期限切れのレコードは消えていること
	result, err = repo.GetTestResult(ctx, "polling-1")
	if err != nil {
		t.Fatalf("GetTestResult failed: %v", err)
	}
	if result != nil {
		t.Error("expired record must be deleted")
	}
}
