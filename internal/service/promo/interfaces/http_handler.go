// internal/service/promo/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"promohub/internal/pkg/logger"
	"promohub/internal/service/promo/application"
	"promohub/internal/service/promo/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PromoHandler 封装了促销服务的 HTTP 处理器
type PromoHandler struct {
	service *application.PromoService
}

// NewPromoHandler 创建一个新的 HTTP 处理器实例
func NewPromoHandler(service *application.PromoService) *PromoHandler {
	return &PromoHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *PromoHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/promotions", h.handleList)
	mux.HandleFunc("POST /api/v1/promotions", h.handleCreate)
	mux.HandleFunc("GET /api/v1/promotions/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/v1/promotions/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/v1/promotions/{id}", h.handleDelete)
}

func (h *PromoHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var dto application.PromoDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if fieldErrs := dto.Validate(); fieldErrs != nil {
		writeJSON(w, http.StatusBadRequest, fieldErrs)
		return
	}

	created, err := h.service.CreatePromo(ctx, &dto)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *PromoHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	dto, err := h.service.GetPromoByID(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *PromoHandler) handleList(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	page := parseIntParam(r, "page", 0)
	size := parseIntParam(r, "size", defaultPageSize)
	if page < 0 {
		page = 0
	}
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}

	dtos, err := h.service.ListPromos(ctx, page, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *PromoHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var dto application.PromoDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if fieldErrs := dto.Validate(); fieldErrs != nil {
		writeJSON(w, http.StatusBadRequest, fieldErrs)
		return
	}

	updated, err := h.service.UpdatePromo(ctx, r.PathValue("id"), &dto)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PromoHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	if err := h.service.DeletePromo(ctx, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError 根据错误类型返回不同的 HTTP 状态码。
// 版本冲突映射为 409，客户端应当重读最新版本后重试。
func (h *PromoHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrPromoNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPromo):
		statusCode = http.StatusBadRequest
	default:
		// 协调器失败（含存储已提交而事件未发出的情况）都走 500
		statusCode = http.StatusInternalServerError
	}

	if statusCode == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, statusCode, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
