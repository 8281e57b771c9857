package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthPredicate はリクエストの認証可否を判定する述語。
type AuthPredicate func(r *http.Request) bool

// BearerAuth は認証述語を満たさないリクエストを空ボディの403で拒否する。
// ルート照合より前に適用されるため、未知のパスでも認証失敗は403になる。
func BearerAuth(authenticate AuthPredicate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authenticate(r) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StaticBearerToken は固定のベアラートークンと照合する認証述語を生成する。
// 比較はタイミング攻撃を避けるため定数時間で行う。
func StaticBearerToken(secret string) AuthPredicate {
	return func(r *http.Request) bool {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
	}
}
