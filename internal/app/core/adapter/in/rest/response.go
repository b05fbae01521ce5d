package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
)

// Response 所有端點共用的回應格式
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respond(c *gin.Context, status int, message string, data any) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Response{Status: status, Message: message, Data: data})
}

// statusOf 錯誤種類對應 HTTP 狀態碼
func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidAmount, domain.KindInvalidArgument, domain.KindAlreadyExists, domain.KindInsufficientFunds:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messages 各端點針對錯誤種類的對外訊息，沒有列出的種類使用 defaultMessage
type messages map[domain.Kind]string

func defaultMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.KindInvalidAmount:
		// Is 只比對種類，這裡要分辨是哪一個 InvalidAmount
		var de *domain.Error
		if errors.As(err, &de) && de.Message == domain.ErrAmountOverflow.Message {
			return "Cash value is too large"
		}
		return cashMessage
	case domain.KindInvalidArgument:
		return "Bad request"
	case domain.KindNotFound:
		return "User not found"
	case domain.KindAlreadyExists:
		return "User with such name has already been created!"
	case domain.KindInsufficientFunds:
		return "User balance is not enough!"
	case domain.KindUnavailable:
		return "Service temporarily unavailable"
	default:
		return "Internal server error"
	}
}

// fail 將錯誤轉成回應，只輸出對外訊息，內部原因交給 logger
func (h *Handler) fail(c *gin.Context, err error, msgs messages) {
	status := statusOf(err)
	msg, ok := msgs[domain.KindOf(err)]
	if !ok {
		msg = defaultMessage(err)
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	} else {
		h.logger.Debug("request rejected",
			zap.String("path", c.FullPath()),
			zap.Stringer("kind", domain.KindOf(err)),
			zap.Error(err),
		)
	}
	respond(c, status, msg, nil)
}
