package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"vetdesk-workflow/internal/config"
)

// Client 诊所 REST 后端客户端
// 所有列表端点可能返回裸数组或 {count,next,previous,results} 分页信封，
// 统一经 DecodeList 归一化
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建诊所后端客户端
func NewClient(cfg config.APIConfig, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// GetJSON GET 请求并反序列化响应
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	req := c.httpClient.R().SetContext(ctx)
	for k, vs := range query {
		for _, v := range vs {
			req.SetQueryParam(k, v)
		}
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to unmarshal GET %s response: %w", path, err)
	}
	return nil
}

// ListJSON GET 列表端点，归一化分页信封后反序列化到切片
func (c *Client) ListJSON(ctx context.Context, path string, query url.Values, out any) error {
	req := c.httpClient.R().SetContext(ctx)
	for k, vs := range query {
		for _, v := range vs {
			req.SetQueryParam(k, v)
		}
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}
	if err := DecodeList(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode GET %s list response: %w", path, err)
	}
	return nil
}

// PostJSON POST 请求并反序列化响应（out 可为 nil）
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s failed: %w", path, err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to unmarshal POST %s response: %w", path, err)
	}
	return nil
}

// PatchJSON PATCH 请求（稀疏 diff，清空字段由调用方放入显式 null）
func (c *Client) PatchJSON(ctx context.Context, path string, body any, out any) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Patch(path)
	if err != nil {
		return fmt.Errorf("PATCH %s failed: %w", path, err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to unmarshal PATCH %s response: %w", path, err)
	}
	return nil
}

// Delete DELETE 请求
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Delete(path)
	if err != nil {
		return fmt.Errorf("DELETE %s failed: %w", path, err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}
	return nil
}

// UploadAttachment 上传医疗卡附件
// 每次请求只带一个文件：单个坏文件不阻塞其余文件
func (c *Client) UploadAttachment(ctx context.Context, cardID int64, fileName, fileType string, file io.Reader, out any) error {
	path := fmt.Sprintf("medical-cards/%d/attachments/", cardID)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("files", fileName, file).
		SetFormData(map[string]string{"types": fileType}).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s failed: %w", path, err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to unmarshal POST %s response: %w", path, err)
	}
	return nil
}
