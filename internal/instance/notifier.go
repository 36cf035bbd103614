package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

// FocusPath is the primary's endpoint for second-instance redirects.
const FocusPath = "/instance/focus"

// FocusRequest is the body of a focus request.
type FocusRequest struct {
	PID  int      `json:"pid"`
	Args []string `json:"args,omitempty"`
}

// HTTPFocusNotifier posts focus requests to the primary's control URL.
type HTTPFocusNotifier struct {
	client *http.Client
	args   []string
}

// NewHTTPFocusNotifier creates a notifier that forwards args to the primary.
func NewHTTPFocusNotifier(args []string, logger *zap.Logger) *HTTPFocusNotifier {
	return &HTTPFocusNotifier{
		client: infra.NewRetryClient(infra.RetryOptions{
			RetryMax:     2,
			RetryWaitMin: 100 * time.Millisecond,
			RetryWaitMax: 500 * time.Millisecond,
			Timeout:      3 * time.Second,
			DialOnly:     true,
		}, logger),
		args: args,
	}
}

// RequestFocus sends one focus request.
func (n *HTTPFocusNotifier) RequestFocus(ctx context.Context, entry domain.InstanceEntry) error {
	if entry.ControlURL == "" {
		return fmt.Errorf("primary instance %d has no control URL", entry.PID)
	}

	body, err := json.Marshal(FocusRequest{PID: os.Getpid(), Args: n.args})
	if err != nil {
		return err
	}
	url := strings.TrimRight(entry.ControlURL, "/") + FocusPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("focus request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("focus request: unexpected status %s", resp.Status)
	}
	return nil
}
