package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/agent/persistence"
	"github.com/ruipedro-pinheiro/CHIKA/types"
)

// =============================================================================
// 🗂️ 讨论记录 Handler
// =============================================================================

// DiscussionHandler 讨论记录查询
type DiscussionHandler struct {
	store  persistence.DiscussionStore
	logger *zap.Logger
}

// NewDiscussionHandler 创建讨论记录处理器
func NewDiscussionHandler(store persistence.DiscussionStore, logger *zap.Logger) *DiscussionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscussionHandler{
		store:  store,
		logger: logger.With(zap.String("component", "discussion_handler")),
	}
}

// HandleListByRoom 返回房间内的讨论，最新的在前
// @Summary 房间讨论列表
// @Tags 讨论
// @Produce json
// @Param room path string true "房间 ID"
// @Param limit query int false "最多返回条数，默认 50，上限 500"
// @Success 200 {array} persistence.Discussion
// @Router /api/v1/rooms/{room}/discussions [get]
func (h *DiscussionHandler) HandleListByRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomFromPath(w, r, h.logger)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
			return
		}
		limit = min(n, persistence.MaxListLimit)
	}

	list, err := h.store.ListByRoom(r.Context(), roomID, limit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if list == nil {
		list = []*persistence.Discussion{}
	}
	WriteSuccess(w, r, list)
}

// HandleGet 返回单条讨论
// @Summary 讨论详情
// @Tags 讨论
// @Produce json
// @Param id path string true "讨论 ID"
// @Success 200 {object} persistence.Discussion
// @Failure 404 {object} Response "不存在"
// @Router /api/v1/discussions/{id} [get]
func (h *DiscussionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	WriteSuccess(w, r, d)
}

func (h *DiscussionHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		WriteError(w, r, types.NewError(types.ErrNotFound, "discussion not found"), h.logger)
	case errors.Is(err, persistence.ErrInvalidInput):
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "invalid discussion id"), h.logger)
	case errors.Is(err, persistence.ErrStoreClosed):
		WriteError(w, r, types.NewError(types.ErrServiceUnavailable, "discussion store is closed").WithCause(err), h.logger)
	default:
		WriteError(w, r, types.NewError(types.ErrStoreFailure, "failed to read discussions").WithCause(err), h.logger)
	}
}
