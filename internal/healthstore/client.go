package healthstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 平台健康存储的 HTTP 客户端实现
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建平台健康存储客户端
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// statusResponse 可用性/权限检查响应
type statusResponse struct {
	Available bool   `json:"available"`
	Granted   bool   `json:"granted"`
	Reason    string `json:"reason"`
}

// Available 平台健康存储功能是否可用
func (c *Client) Available(ctx context.Context) error {
	var status statusResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/v1/status")
	if err != nil {
		return fmt.Errorf("health store unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("health store status check failed: HTTP %d", resp.StatusCode())
	}
	if !status.Available {
		return fmt.Errorf("health store unavailable: %s", status.Reason)
	}
	return nil
}

// CheckPermissions 是否已获得全部读写授权
func (c *Client) CheckPermissions(ctx context.Context) error {
	var status statusResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/v1/permissions")
	if err != nil {
		return fmt.Errorf("permission check unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("permission check failed: HTTP %d", resp.StatusCode())
	}
	if !status.Granted {
		return fmt.Errorf("health store permissions not granted: %s", status.Reason)
	}
	return nil
}

// WriteRecords 单批写入记录
func (c *Client) WriteRecords(ctx context.Context, records []Record) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{"records": records}).
		Post("/v1/records")
	if err != nil {
		return fmt.Errorf("failed to write health store records: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("health store write failed: HTTP %d", resp.StatusCode())
	}

	c.logger.Debug("Wrote records to health store",
		zap.Int("record_count", len(records)),
	)
	return nil
}

// ReadRecords 读取时间范围内的所有记录类型
func (c *Client) ReadRecords(ctx context.Context, from, to time.Time) ([]Record, error) {
	var result struct {
		Records []Record `json:"records"`
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("from", from.UTC().Format(time.RFC3339)).
		SetQueryParam("to", to.UTC().Format(time.RFC3339)).
		SetResult(&result).
		Get("/v1/records")
	if err != nil {
		return nil, fmt.Errorf("failed to read health store records: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("health store read failed: HTTP %d", resp.StatusCode())
	}

	return result.Records, nil
}
