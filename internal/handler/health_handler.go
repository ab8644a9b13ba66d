package handler

import (
	"net/http"

	"github.com/hitoshi/postrelay/internal/middleware"
)

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewHealthHandler はサービス名を返すヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "OK", Service: serviceName})
	}
}
