// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// Clock は現在時刻の供給源。テストで固定時刻を注入できるようにする。
type Clock func() time.Time

// TestResultValue は検査結果の値を表す。
type TestResultValue string

const (
	// TestResultPositive は陽性の検査結果を表す。
	TestResultPositive TestResultValue = "POSITIVE"
	// TestResultNegative は陰性の検査結果を表す。
	TestResultNegative TestResultValue = "NEGATIVE"
	// TestResultVoid は無効な検査結果を表す。
	TestResultVoid TestResultValue = "VOID"
)

// TestResultStatus は検査結果の状態を表す。
type TestResultStatus string

const (
	// TestResultStatusPending はラボの結果がまだ届いていない状態を表す。
	TestResultStatusPending TestResultStatus = "pending"
	// TestResultStatusAvailable は結果が取得可能な状態を表す。
	TestResultStatusAvailable TestResultStatus = "available"
)

// TestResult は検査結果エンティティを表す。リクエスト処理中は不変として扱う。
type TestResult struct {
	PollingToken string
	TestEndDate  string
	Result       TestResultValue
	Status       TestResultStatus
}

// TestOrderTokens は検査キット注文時に発行される3つのトークンを表す。
// 永続化後は変更されない。
type TestOrderTokens struct {
	DiagnosisKeySubmissionToken string
	TestResultPollingToken      string
	CtaToken                    string
}

// TestOrderResponse は注文・登録操作のレスポンスを表す。
type TestOrderResponse struct {
	DiagnosisKeySubmissionToken string
	TestResultPollingToken      string
	TokenParameterValue         string
	WebsiteURLWithQuery         string
}

// SignatureAlgorithm はレスポンス署名のアルゴリズムを表す。
type SignatureAlgorithm string

// SignatureAlgorithmECDSASHA256 は本サービスで使用する唯一の署名アルゴリズム。
const SignatureAlgorithmECDSASHA256 SignatureAlgorithm = "ECDSA_SHA_256"

// Signature はレスポンスごとに生成される署名を表す。永続化されない。
type Signature struct {
	KeyID     string
	Algorithm SignatureAlgorithm
	Bytes     []byte
}

// VirologyTimeToLive は注文・結果レコードの削除予定時刻を表す。
type VirologyTimeToLive struct {
	TestResultPollingToken      string
	DiagnosisKeySubmissionToken string
	ExpireAt                    time.Time
}
