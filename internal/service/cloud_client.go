package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// UploadRequest 云端上传请求体
type UploadRequest struct {
	Metrics       []MetricDTO `json:"metrics"`
	CorrelationID string      `json:"correlationId"`
}

// UploadResponse 云端上传响应
type UploadResponse struct {
	Success       bool     `json:"success"`
	SyncedCount   int      `json:"syncedCount"`
	FailedCount   int      `json:"failedCount"`
	DurationMs    int64    `json:"durationMs"`
	CorrelationID string   `json:"correlationId"`
	Errors        []string `json:"errors,omitempty"`
}

// UploadError 上传失败，携带可重试性分类：
// 超时/DNS/5xx 可重试；4xx（协议或校验错误）不可重试
type UploadError struct {
	StatusCode int
	Retryable  bool
	Message    string
}

func (e *UploadError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upload failed: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upload failed: %s", e.Message)
}

// CloudClient 云端上传端点的 HTTP 客户端
type CloudClient struct {
	httpClient *resty.Client
	appVersion string
	logger     *zap.Logger
}

// NewCloudClient 创建云端上传客户端
// 不配置 resty 自动重试：重试语义由同步状态机（退避、计数、DLQ）独占管理
func NewCloudClient(baseURL string, timeout time.Duration, appVersion string, logger *zap.Logger) *CloudClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &CloudClient{
		httpClient: client,
		appVersion: appVersion,
		logger:     logger,
	}
}

// Upload 上传一批聚合记录
func (c *CloudClient) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	var response UploadResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Correlation-ID", req.CorrelationID).
		SetHeader("X-App-Version", c.appVersion).
		SetBody(req).
		SetResult(&response).
		Post("/uploadHealthMetrics")

	if err != nil {
		// 传输层错误（超时、DNS、不可达）：始终可重试
		return nil, &UploadError{Retryable: true, Message: err.Error()}
	}

	if resp.IsError() {
		retryable := resp.StatusCode() >= 500
		c.logger.Warn("Cloud upload rejected",
			zap.String("correlation_id", req.CorrelationID),
			zap.Int("status_code", resp.StatusCode()),
			zap.Bool("retryable", retryable),
		)
		return nil, &UploadError{
			StatusCode: resp.StatusCode(),
			Retryable:  retryable,
			Message:    string(resp.Body()),
		}
	}

	c.logger.Info("Cloud upload succeeded",
		zap.String("correlation_id", req.CorrelationID),
		zap.Int("synced_count", response.SyncedCount),
		zap.Int("failed_count", response.FailedCount),
		zap.Int64("duration_ms", response.DurationMs),
	)

	return &response, nil
}
