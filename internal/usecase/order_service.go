package usecase

import (
	"context"
	"fmt"
	"time"

	"virology-test-service/internal/domain"
)

// OrderPersistence は注文・検査結果ストアのインターフェース。
// GetTestResultは該当レコードがない場合 (nil, nil) を返す。
// PersistTestOrderはコミット時点でtokensサプライヤを呼び出す。
// ストア側がリトライする場合はサプライヤを再度呼び出してトークンを再生成してよい。
type OrderPersistence interface {
	GetTestResult(ctx context.Context, pollingToken string) (*domain.TestResult, error)
	PersistTestOrder(ctx context.Context, tokens func() domain.TestOrderTokens, expireAt time.Time) (domain.TestOrderTokens, error)
	MarkForDeletion(ctx context.Context, ttl domain.VirologyTimeToLive) error
}

// VirologyService は検査キット注文に関するビジネスロジックを提供する。
type VirologyService struct {
	persistence        OrderPersistence
	tokens             *TokensGenerator
	clock              domain.Clock
	orderWebsiteURL    string
	registerWebsiteURL string
	retention          time.Duration
}

// NewVirologyService は新しいVirologyServiceを生成する。
func NewVirologyService(
	persistence OrderPersistence,
	tokens *TokensGenerator,
	clock domain.Clock,
	orderWebsiteURL string,
	registerWebsiteURL string,
	retention time.Duration,
) *VirologyService {
	return &VirologyService{
		persistence:        persistence,
		tokens:             tokens,
		clock:              clock,
		orderWebsiteURL:    orderWebsiteURL,
		registerWebsiteURL: registerWebsiteURL,
		retention:          retention,
	}
}

// PollResult はポーリングトークンに対応する検査結果を取得する。
// 状態遷移は行わない読み取り専用の操作。
func (s *VirologyService) PollResult(ctx context.Context, pollingToken string) (*domain.TestResult, error) {
	if pollingToken == "" {
		return nil, domain.ErrMissingPollingToken
	}

	result, err := s.persistence.GetTestResult(ctx, pollingToken)
	if err != nil {
		return nil, fmt.Errorf("getting test result: %w", err)
	}
	if result == nil {
		return nil, domain.ErrTestResultNotFound
	}

	return result, nil
}

// OrderHomeKit は自宅検査キットの注文を受け付け、トークン一式を発行する。
func (s *VirologyService) OrderHomeKit(ctx context.Context) (*domain.TestOrderResponse, error) {
	return s.createOrder(ctx, s.orderWebsiteURL)
}

// RegisterHomeKit は手元の検査キットを登録し、トークン一式を発行する。
func (s *VirologyService) RegisterHomeKit(ctx context.Context) (*domain.TestOrderResponse, error) {
	return s.createOrder(ctx, s.registerWebsiteURL)
}

func (s *VirologyService) createOrder(ctx context.Context, websiteURL string) (*domain.TestOrderResponse, error) {
	expireAt := s.clock().Add(s.retention)

	tokens, err := s.persistence.PersistTestOrder(ctx, s.tokens.NewTokens, expireAt)
	if err != nil {
		return nil, fmt.Errorf("persisting test order: %w", err)
	}

	return &domain.TestOrderResponse{
		DiagnosisKeySubmissionToken: tokens.DiagnosisKeySubmissionToken,
		TestResultPollingToken:      tokens.TestResultPollingToken,
		TokenParameterValue:         tokens.CtaToken,
		WebsiteURLWithQuery:         websiteURL + "?ctaToken=" + tokens.CtaToken,
	}, nil
}
