package imagery

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptcanvas/internal/logging"
	"promptcanvas/internal/telemetry"
)

// HeadValidator checks URLs with a HEAD request. Redirects are followed by
// the client's default policy. A URL is an image when the final response is
// 200 with a Content-Type starting with "image/".
type HeadValidator struct {
	client  *http.Client
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// NewHeadValidator creates a validator. A nil client gets a fresh one and
// a non-positive timeout defaults to two seconds.
func NewHeadValidator(client *http.Client, timeout time.Duration, metrics *telemetry.Metrics) *HeadValidator {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HeadValidator{
		client:  client,
		timeout: timeout,
		metrics: metrics,
		logger:  logging.Get(logging.CategoryImagery).Zap(),
	}
}

func (v *HeadValidator) Validate(ctx context.Context, rawURL string) bool {
	ok := v.check(ctx, rawURL)
	result := telemetry.ResultOK
	if !ok {
		result = telemetry.ResultFail
	}
	v.metrics.IncrementImageLookup(telemetry.StageValidate, result)
	return ok
}

func (v *HeadValidator) check(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		v.logger.Debug("image url rejected", zap.String("url", rawURL), zap.Error(err))
		return false
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("image HEAD failed", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.Debug("image HEAD status", zap.String("url", rawURL), zap.Int("status", resp.StatusCode))
		return false
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		v.logger.Debug("image HEAD content type", zap.String("url", rawURL), zap.String("content_type", contentType))
		return false
	}
	return true
}
