package http

import (
	"net/http"

	"github.com/dkeye/Arena/internal/app"
	"github.com/dkeye/Arena/internal/codec"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/gin-gonic/gin"
)

type adminHandlers struct {
	rooms *app.RoomManager
}

type listQuery struct {
	Class  string `form:"class" binding:"max=64"`
	Status string `form:"status" binding:"omitempty,oneof=waiting running finished"`
}

func (h *adminHandlers) listRooms(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, domain.Wrap(domain.CodeBadPayload, "invalid query", err))
		return
	}
	var status *domain.Status
	if q.Status != "" {
		s, _ := domain.ParseStatus(q.Status)
		status = &s
	}
	c.JSON(http.StatusOK, gin.H{"rooms": h.rooms.List(domain.RoomClass(q.Class), status)})
}

func (h *adminHandlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.Stats())
}

func (h *adminHandlers) destroyRoom(c *gin.Context) {
	if err := h.rooms.DestroyRoom(domain.RoomID(c.Param("id"))); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	e := domain.AsError(err)
	msg := e.Message
	if e.Code == domain.CodeInternal {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(httpStatus(e.Code), codec.ErrorData{Code: e.Code, Message: msg, Context: e.Context})
}

func httpStatus(code domain.Code) int {
	switch code {
	case domain.CodeRoomNotFound:
		return http.StatusNotFound
	case domain.CodeBadPayload, domain.CodeInvalidConfig, domain.CodeUnknownClass:
		return http.StatusBadRequest
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusConflict
}
