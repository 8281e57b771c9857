package domain

import "errors"

var (
	// ErrTestResultNotFound は指定されたポーリングトークンに対応する検査結果が存在しない場合のエラー。
	ErrTestResultNotFound = errors.New("test result not found")

	// ErrMissingPollingToken はポーリングトークンが欠落・空の場合のエラー。
	ErrMissingPollingToken = errors.New("polling token is missing or empty")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
