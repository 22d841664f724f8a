package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// GenericFailureMessage 服务端没有给出 detail 时的兜底提示
const GenericFailureMessage = "Не удалось сохранить изменения"

// APIError 后端返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Detail     string // 服务端 {"detail": "..."} 的原文，可能为空
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// UserMessage 面向用户的提示：detail 原文优先，缺失时用通用失败提示
func (e *APIError) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return GenericFailureMessage
}

// newAPIError 从响应体中提取 detail 字段
func newAPIError(resp *resty.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err == nil {
		apiErr.Detail = payload.Detail
	}
	return apiErr
}

// AsAPIError 从错误链中取出 APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// UserMessage 任意错误的用户提示：APIError 走 detail 逻辑，其余用通用提示
func UserMessage(err error) string {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.UserMessage()
	}
	return GenericFailureMessage
}
