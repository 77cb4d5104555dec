// internal/common/camunda/client.go
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lead-automation/internal/common/errors"
)

// Client owns the gateway connection shared by every job worker and retries
// the commands workers send back (complete, fail, throw).
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds command retries. Delays double from BaseDelay up to
// MaxDelay.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

func (r *RetryConfig) delay(attempt int) time.Duration {
	if attempt >= 30 {
		return r.MaxDelay
	}
	d := r.BaseDelay << attempt
	if d <= 0 || d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// NewClient connects to a plaintext gateway with default timeouts.
func NewClient(address string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
	})
}

// NewClientWithConfig connects and requests the broker topology; a gateway
// that cannot answer is reported as an error instead of a lazy failure on
// the first job.
func NewClientWithConfig(cfg *ClientConfig) (*Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}

	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}

	c := &Client{client: zc, config: cfg}
	if err := c.HealthCheck(context.Background()); err != nil {
		zc.Close()
		return nil, fmt.Errorf("gateway %s: %w", cfg.GatewayAddress, err)
	}
	return c, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry sends a command, retrying transient gateway failures.
// The returned error is always a ZEEBE_REQUEST_FAILED StandardError.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	commandFunc func(context.Context) (interface{}, error),
	operationName string,
) (interface{}, error) {
	retry := c.config.RetryConfig
	for attempt := 0; ; attempt++ {
		sendCtx := ctx
		cancel := func() {}
		if c.config.RequestTimeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		}
		result, err := commandFunc(sendCtx)
		cancel()
		if err == nil {
			return result, nil
		}

		retryable := isRetryableZeebeError(err)
		if !retryable || attempt >= retry.MaxRetries {
			if attempt > 0 {
				operationName = fmt.Sprintf("%s (after %d attempts)", operationName, attempt+1)
			}
			return nil, errors.NewZeebeRequestFailedError(operationName, err, retryable)
		}

		select {
		case <-time.After(retry.delay(attempt)):
		case <-ctx.Done():
			return nil, errors.NewZeebeRequestFailedError(operationName, ctx.Err(), false)
		}
	}
}

// isRetryableZeebeError reports whether a command failed for a transient
// reason. gRPC status codes decide when present; plain errors from the
// transport are matched by message.
func isRetryableZeebeError(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"code = unavailable",
		"code = deadlineexceeded",
		"code = resourceexhausted",
		"connection refused",
		"connection reset",
		"deadline exceeded",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// HealthCheck asks the gateway for the cluster topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe topology request failed: %w", err)
	}
	return nil
}
