// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"crypto/rand"

	"github.com/google/uuid"

	"virology-test-service/internal/domain"
)

// ctaTokenLength はCTAトークンの固定長。URLクエリに人が打ち込める長さにする。
const ctaTokenLength = 8

// ctaTokenCharset はCTAトークンに使用する文字集合。
const ctaTokenCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// TokensGenerator は注文ごとのトークン一式を生成する。
// 共有状態を持たないため、複数ゴルーチンから同時に呼び出せる。
type TokensGenerator struct{}

// NewTokensGenerator は新しいTokensGeneratorを生成する。
func NewTokensGenerator() *TokensGenerator {
	return &TokensGenerator{}
}

// NewTokens は3つの独立したトークンを生成する。
// 提出トークンとポーリングトークンは128ビット乱数のUUID、
// CTAトークンは[a-z0-9]の8文字（長いトークンの切り詰めではない）。
func (g *TokensGenerator) NewTokens() domain.TestOrderTokens {
	return domain.TestOrderTokens{
		DiagnosisKeySubmissionToken: uuid.NewString(),
		TestResultPollingToken:      uuid.NewString(),
		CtaToken:                    newCtaToken(),
	}
}

// newCtaToken はCTAトークンを生成する。乱数源の枯渇はuuidと同様にパニック扱い。
func newCtaToken() string {
	buf := make([]byte, ctaTokenLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	token := make([]byte, ctaTokenLength)
	for i, b := range buf {
		token[i] = ctaTokenCharset[int(b)%len(ctaTokenCharset)]
	}
	return string(token)
}
