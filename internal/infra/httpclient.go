package infra

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// retryLogger implements the retryablehttp.LeveledLogger interface on top of zap
type retryLogger struct {
	sugar *zap.SugaredLogger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Request-level info is too chatty for the coordinator log
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// RetryOptions tunes NewRetryClient.
type RetryOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Timeout bounds each attempt. Zero leaves timeouts to request contexts.
	Timeout time.Duration
	// DialOnly retries only when the connection could not be established,
	// so a request the server may have handled is never repeated.
	DialOnly bool
}

// retryOnDialError is a retryablehttp.CheckRetry that retries failed dials only.
func retryOnDialError(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

// NewRetryClient wraps an http.Client with retry and backoff.
func NewRetryClient(opts RetryOptions, logger *zap.Logger) *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	client.HTTPClient.Timeout = opts.Timeout
	if opts.DialOnly {
		client.CheckRetry = retryOnDialError
	}
	if logger != nil {
		client.Logger = &retryLogger{sugar: logger.Named("http").Sugar()}
	} else {
		client.Logger = nil
	}
	return client.StandardClient()
}
