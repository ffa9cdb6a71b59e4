package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
	"github.com/wyfcoding/optionescrow/pkg/logger"
)

// Response 统一响应体
type Response struct {
	Code      domain.ErrorCode `json:"code"`
	Message   string           `json:"message,omitempty"`
	Data      any              `json:"data"`
	RequestID string           `json:"request_id,omitempty"`
}

var statusByCode = map[domain.ErrorCode]int{
	domain.CodeInvalidExpiration:      http.StatusBadRequest,
	domain.CodeInvalidAmount:          http.StatusBadRequest,
	domain.CodeInvalidRequest:         http.StatusBadRequest,
	domain.CodeUnauthorized:           http.StatusForbidden,
	domain.CodeOptionNotFound:         http.StatusNotFound,
	domain.CodeOptionAlreadyExercised: http.StatusConflict,
	domain.CodeOptionExpired:          http.StatusConflict,
	domain.CodeInsufficientFunds:      http.StatusUnprocessableEntity,
	domain.CodeArithmeticFault:        http.StatusUnprocessableEntity,
	domain.CodeBusy:                   http.StatusServiceUnavailable,
}

// HTTPStatus 错误码对应的 HTTP 状态码
func HTTPStatus(code domain.ErrorCode) int {
	if code == domain.CodeOK {
		return http.StatusOK
	}
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Code: domain.CodeOK, Data: data})
}

func fail(c *gin.Context, err error) {
	code := domain.Code(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(HTTPStatus(code), Response{
		Code:      code,
		Message:   msg,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Code:      domain.CodeInvalidRequest,
		Message:   msg,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}
