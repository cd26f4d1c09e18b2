package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/agent/collaboration"
	"github.com/ruipedro-pinheiro/CHIKA/api"
	"github.com/ruipedro-pinheiro/CHIKA/types"
)

// =============================================================================
// 🤝 协作接口 Handler
// =============================================================================

// MaxRoomIDLength 房间 ID 最大长度，与 discussions.room_id 列宽一致
const MaxRoomIDLength = 128

// Collaborator 执行一次协作，collaboration.Engine 实现该接口
type Collaborator interface {
	Collaborate(ctx context.Context, roomID, message string, history []types.Turn, active []string) (*collaboration.Result, error)
}

// CollaborationHandler 协作接口处理器
type CollaborationHandler struct {
	engine Collaborator
	logger *zap.Logger
}

// NewCollaborationHandler 创建协作处理器
func NewCollaborationHandler(engine Collaborator, logger *zap.Logger) *CollaborationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollaborationHandler{
		engine: engine,
		logger: logger.With(zap.String("component", "collaboration_handler")),
	}
}

// HandleCollaborate 处理一条房间消息
// @Summary 协作回复
// @Tags 协作
// @Accept json
// @Produce json
// @Param room path string true "房间 ID"
// @Param request body api.CollaborateRequest true "协作请求"
// @Success 200 {object} collaboration.Result
// @Failure 400 {object} Response "无效请求或未知 responder"
// @Failure 409 {object} Response "房间正忙"
// @Security ApiKeyAuth
// @Router /api/v1/rooms/{room}/collaborate [post]
func (h *CollaborationHandler) HandleCollaborate(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomFromPath(w, r, h.logger)
	if !ok {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.CollaborateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "message is required", h.logger)
		return
	}

	active := req.NormalizedResponders()
	for _, name := range active {
		if !types.IsKnownResponder(name) {
			WriteError(w, r, types.NewError(types.ErrUnknownResponder,
				fmt.Sprintf("unknown responder %q (known: %s)", name, strings.Join(types.KnownResponders, ", "))), h.logger)
			return
		}
	}

	start := time.Now()
	res, err := h.engine.Collaborate(r.Context(), roomID, req.Message, req.Turns(), active)
	if err != nil {
		WriteAnyError(w, r, err, h.logger)
		return
	}

	h.logger.Info("collaboration completed",
		zap.String("room_id", roomID),
		zap.String("state", string(res.State)),
		zap.String("author", res.Author),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, r, res)
}

// roomFromPath 读取并校验 {room} 路径参数
func roomFromPath(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	room := strings.TrimSpace(r.PathValue("room"))
	switch {
	case room == "":
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "room id is required", logger)
		return "", false
	case len(room) > MaxRoomIDLength:
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
			fmt.Sprintf("room id exceeds %d characters", MaxRoomIDLength), logger)
		return "", false
	}
	return room, true
}
