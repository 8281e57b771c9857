package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteAuditLog は操作の結果を監査ログに出力する。
// トークン値やリクエストボディの内容はログに含めない。
func WriteAuditLog(ctx context.Context, operation string, status int, result string) {
	slog.InfoContext(ctx, "virology operation completed",
		"operation", operation,
		"status", status,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
