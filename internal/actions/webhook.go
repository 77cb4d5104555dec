// internal/actions/webhook.go
package actions

import (
	"context"
	"net/http"
	"strings"
	"time"

	"lead-automation/internal/common/errors"
	apphttp "lead-automation/internal/common/http"
	"lead-automation/internal/common/logger"
)

type HTTPWebhookDispatcher struct {
	client *apphttp.Client
	logger logger.Logger
}

func NewHTTPWebhookDispatcher(timeout time.Duration, log logger.Logger) *HTTPWebhookDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPWebhookDispatcher{client: apphttp.NewClient(timeout), logger: log}
}

// Dispatch sends the payload as JSON. Any non-2xx status is a failure.
func (d *HTTPWebhookDispatcher) Dispatch(ctx context.Context, req WebhookRequest) (int, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}

	var payload interface{}
	if method != http.MethodGet && req.Payload != nil {
		payload = req.Payload
	}

	resp, err := d.client.DoJSON(ctx, method, req.URL, req.Headers, payload)
	if err != nil {
		return 0, errors.NewWebhookDeliveryFailedError(req.URL, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, errors.NewWebhookDeliveryFailedError(req.URL, resp.StatusCode, nil)
	}

	d.logger.Debug("Webhook delivered", map[string]interface{}{
		"url":    req.URL,
		"status": resp.StatusCode,
	})
	return resp.StatusCode, nil
}
