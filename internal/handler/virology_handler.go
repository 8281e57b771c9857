// Package handler はHTTPハンドラを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"virology-test-service/internal/domain"
	"virology-test-service/internal/middleware"
	"virology-test-service/internal/usecase"
	"virology-test-service/pkg/httputil"
)

// VirologyHandler はHTTPハンドラを提供する。
type VirologyHandler struct {
	service *usecase.VirologyService
}

// NewVirologyHandler は新しいVirologyHandlerを生成する。
func NewVirologyHandler(service *usecase.VirologyService) *VirologyHandler {
	return &VirologyHandler{service: service}
}

// PollResultRequest は結果ポーリングのリクエスト形式。
// トークンのnull・欠落を区別するためポインタで受ける。
type PollResultRequest struct {
	TestResultPollingToken *string `json:"testResultPollingToken"`
}

// TestResultResponse は取得可能な検査結果のレスポンス形式。
type TestResultResponse struct {
	TestEndDate string `json:"testEndDate"`
	TestResult  string `json:"testResult"`
}

// TestOrderResponse は注文・登録操作のレスポンス形式。
type TestOrderResponse struct {
	DiagnosisKeySubmissionToken string `json:"diagnosisKeySubmissionToken"`
	TestResultPollingToken      string `json:"testResultPollingToken"`
	TokenParameterValue         string `json:"tokenParameterValue"`
	WebsiteURLWithQuery         string `json:"websiteUrlWithQuery"`
}

// PollResult は検査結果を取得する。
// 結果が届いていない場合は204、トークン未登録の場合は404を返す。
func (h *VirologyHandler) PollResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parsePollResultRequest(r)
	if err != nil {
		middleware.WriteAuditLog(ctx, "POLL_RESULT", http.StatusUnprocessableEntity, "REJECTED")
		httputil.Empty(w, http.StatusUnprocessableEntity)
		return
	}

	result, err := h.service.PollResult(ctx, *req.TestResultPollingToken)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingPollingToken):
			middleware.WriteAuditLog(ctx, "POLL_RESULT", http.StatusUnprocessableEntity, "REJECTED")
			httputil.Empty(w, http.StatusUnprocessableEntity)
		case errors.Is(err, domain.ErrTestResultNotFound):
			middleware.WriteAuditLog(ctx, "POLL_RESULT", http.StatusNotFound, "NOT_FOUND")
			httputil.Empty(w, http.StatusNotFound)
		default:
			middleware.WriteAuditLog(ctx, "POLL_RESULT", http.StatusInternalServerError, "FAILED")
			httputil.Empty(w, http.StatusInternalServerError)
		}
		return
	}

	if result.Status == domain.TestResultStatusPending {
		middleware.WriteAuditLog(ctx, "POLL_RESULT", http.StatusNoContent, "PENDING")
		httputil.Empty(w, http.StatusNoContent)
		return
	}

	middleware.WriteAuditLog(ctx, "POLL_RESULT", http.StatusOK, "SUCCESS")
	httputil.JSON(w, http.StatusOK, TestResultResponse{
		TestEndDate: result.TestEndDate,
		TestResult:  string(result.Result),
	})
}

// parsePollResultRequest はリクエストボディを検証付きで読み取る。
// ボディ欠落、JSON不正、トークンのnull・空文字はすべて検証エラー。
func parsePollResultRequest(r *http.Request) (*PollResultRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var req PollResultRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	if req.TestResultPollingToken == nil || *req.TestResultPollingToken == "" {
		return nil, domain.ErrMissingPollingToken
	}
	return &req, nil
}

// OrderHomeKit は自宅検査キットを注文し、トークン一式を返す。
func (h *VirologyHandler) OrderHomeKit(w http.ResponseWriter, r *http.Request) {
	h.createOrder(w, r, "ORDER_HOME_KIT", h.service.OrderHomeKit)
}

// RegisterHomeKit は検査キットを登録し、トークン一式を返す。
func (h *VirologyHandler) RegisterHomeKit(w http.ResponseWriter, r *http.Request) {
	h.createOrder(w, r, "REGISTER_HOME_KIT", h.service.RegisterHomeKit)
}

func (h *VirologyHandler) createOrder(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	create func(ctx context.Context) (*domain.TestOrderResponse, error),
) {
	ctx := r.Context()

	order, err := create(ctx)
	if err != nil {
		middleware.WriteAuditLog(ctx, operation, http.StatusInternalServerError, "FAILED")
		httputil.Empty(w, http.StatusInternalServerError)
		return
	}

	middleware.WriteAuditLog(ctx, operation, http.StatusOK, "SUCCESS")
	httputil.JSON(w, http.StatusOK, TestOrderResponse{
		DiagnosisKeySubmissionToken: order.DiagnosisKeySubmissionToken,
		TestResultPollingToken:      order.TestResultPollingToken,
		TokenParameterValue:         order.TokenParameterValue,
		WebsiteURLWithQuery:         order.WebsiteURLWithQuery,
	})
}
