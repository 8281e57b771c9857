// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"virology-test-service/internal/domain"
)

const (
	// HeaderSignature は署名を格納するレスポンスヘッダ名。
	HeaderSignature = "x-amz-meta-signature"
	// HeaderSignatureDate は署名対象の日時を格納するレスポンスヘッダ名。
	HeaderSignatureDate = "x-amz-meta-signature-date"
)

// Signer は署名生成のインターフェース。digestはSHA-256ダイジェスト。
type Signer interface {
	Sign(ctx context.Context, digest []byte) (domain.Signature, error)
}

// responseBuffer は下流ハンドラのレスポンスを署名のために蓄積する。
type responseBuffer struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (b *responseBuffer) Header() http.Header {
	return b.header
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *responseBuffer) WriteHeader(status int) {
	b.status = status
}

// canonicalHeaders はヘッダマップを決定的なテキスト表現に変換する。
// 小文字キーの昇順で "key:v1,v2" を1行ずつ並べる。
func canonicalHeaders(header http.Header) []byte {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(strings.ToLower(k))
		b.WriteString(":")
		b.WriteString(strings.Join(header[k], ","))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// canonicalContent は署名対象の正規化表現を構築する。
// RFC 1123形式の日時、ステータスコード、ヘッダのSHA-256、ボディのSHA-256を改行で連結する。
func canonicalContent(date string, status int, header http.Header, body []byte) []byte {
	headerSum := sha256.Sum256(canonicalHeaders(header))
	bodySum := sha256.Sum256(body)
	content := date + "\n" + strconv.Itoa(status) +
		"\n" + base64.StdEncoding.EncodeToString(headerSum[:]) +
		"\n" + base64.StdEncoding.EncodeToString(bodySum[:])
	return []byte(content)
}

// NewResponseSigner はすべてのレスポンスに署名ヘッダを付与するミドルウェアを生成する。
// ミドルウェアチェーンの最外殻に配置し、成功・失敗・パニック回復後の
// レスポンスを含む全応答が署名されることを保証する。
// 署名自体が失敗した場合は、署名なしの空ボディ500を返す。
func NewResponseSigner(signer Signer, clock domain.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := newResponseBuffer()
			next.ServeHTTP(buf, r)

			date := clock().UTC().Format(http.TimeFormat)
			digest := sha256.Sum256(canonicalContent(date, buf.status, buf.header, buf.body.Bytes()))

			sig, err := signer.Sign(r.Context(), digest[:])
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to sign response",
					"operation", "sign_response",
					"error", err,
				)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			for key, values := range buf.header {
				for _, v := range values {
					w.Header().Add(key, v)
				}
			}
			w.Header().Set(HeaderSignature, formatSignatureHeader(sig))
			w.Header().Set(HeaderSignatureDate, date)
			w.WriteHeader(buf.status)
			if buf.body.Len() > 0 {
				if _, err := w.Write(buf.body.Bytes()); err != nil {
					slog.ErrorContext(r.Context(), "failed to write signed response",
						"operation", "sign_response",
						"error", err,
					)
				}
			}
		})
	}
}

// formatSignatureHeader は署名情報を安定したテキスト形式に整形する。
func formatSignatureHeader(sig domain.Signature) string {
	return fmt.Sprintf("keyId=%q,signatureAlgorithm=%q,signature=%q",
		sig.KeyID, sig.Algorithm, base64.StdEncoding.EncodeToString(sig.Bytes))
}
