package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义，webhook 以外的接口统一返回 HTTP 200 + code
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodePermissionDenied = 1002
	CodeResourceNotFound = 1003
	CodeStateConflict    = 1004
	CodeDuplicateAction  = 1005
	CodeServerError      = 5000
)

var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "参数错误",
	CodeAuthFailed:       "认证失败",
	CodePermissionDenied: "权限不足",
	CodeResourceNotFound: "资源不存在",
	CodeStateConflict:    "当前状态不允许该操作",
	CodeDuplicateAction:  "重复操作",
	CodeServerError:      "服务器内部错误",
}

// Message 返回错误码的默认消息，未知错误码返回空串
func Message(code int) string {
	return codeMessages[code]
}

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, codeMessages[CodeSuccess], data)
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeSuccess, Message: message, Data: data})
}

// Error message 为空时使用默认消息
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = Message(code)
	}
	c.JSON(http.StatusOK, Response{Code: code, Message: message})
}

// Abort 写出错误并终止后续 handler，供中间件使用
func Abort(c *gin.Context, code int, message string) {
	Error(c, code, message)
	c.Abort()
}

func ParamError(c *gin.Context, message string)      { Error(c, CodeParamError, message) }
func AuthError(c *gin.Context, message string)       { Error(c, CodeAuthFailed, message) }
func PermissionError(c *gin.Context, message string) { Error(c, CodePermissionDenied, message) }
func NotFoundError(c *gin.Context, message string)   { Error(c, CodeResourceNotFound, message) }
func DuplicateError(c *gin.Context, message string)  { Error(c, CodeDuplicateAction, message) }
func ServerError(c *gin.Context, message string)     { Error(c, CodeServerError, message) }

// ConflictError 状态冲突，例如审核已拒绝的推广者
func ConflictError(c *gin.Context, message string) { Error(c, CodeStateConflict, message) }
