// Package messenger delivers the outreach message to a single phone number.
// Every backend satisfies dispatch.Messenger and reports delivery failures as
// *dispatch.ChannelError so the dispatcher can record them on the row.
package messenger

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/lead-dispatch/internal/pkg/httpretry"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
)

const maxErrorBody = 4096

func newHTTPClient(timeout time.Duration, retries int) httpretry.HTTPDoer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return httpretry.NewRetryClient(&http.Client{Timeout: timeout}, retries, httpretry.NonIdempotent())
}

// transportError wraps a failed round trip.
func transportError(provider string, err error) *dispatch.ChannelError {
	return dispatch.NewChannelError(fmt.Sprintf("%s request failed: %v", provider, err), err)
}

// readErrorBody returns a trimmed prefix of an error response body.
func readErrorBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(b))
}

// statusDetail formats a non-2xx response that carried no structured error.
func statusDetail(provider, status, body string) string {
	if body == "" {
		return fmt.Sprintf("%s %s", provider, status)
	}
	return fmt.Sprintf("%s %s: %s", provider, status, body)
}

// digitsOnly strips the leading '+' for APIs that take bare E.164 digits.
func digitsOnly(e164 string) string {
	return strings.TrimPrefix(e164, "+")
}
