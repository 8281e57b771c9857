// Package httputil はHTTPレスポンス生成のユーティリティを提供する。
package httputil

import (
	"encoding/json"
	"net/http"
)

// JSON はJSONレスポンスを返す。
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// ヘッダーは既に送信済みのため、これ以上の変更はできない
			http.Error(w, "", http.StatusInternalServerError)
		}
	}
}

// Empty は空ボディのレスポンスを返す。失敗系のステータスコードで使用する。
func Empty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}
