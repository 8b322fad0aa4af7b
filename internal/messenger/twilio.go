package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/lead-dispatch/internal/pkg/httpretry"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
)

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// Twilio sends SMS, or WhatsApp messages when whatsapp is set, through the
// Twilio Messages API.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	whatsapp   bool
	baseURL    string
	http       httpretry.HTTPDoer
}

// NewTwilio creates a Twilio sender.
func NewTwilio(accountSID, authToken, from string, whatsapp bool, baseURL string, timeout time.Duration, retries int) *Twilio {
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		whatsapp:   whatsapp,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       newHTTPClient(timeout, retries),
	}
}

func (t *Twilio) address(number string) string {
	if t.whatsapp && !strings.HasPrefix(number, "whatsapp:") {
		return "whatsapp:" + number
	}
	return number
}

// SendInstant creates one message resource addressed to phone.
func (t *Twilio) SendInstant(ctx context.Context, phone, message string, opts dispatch.SendOptions) error {
	form := url.Values{}
	form.Set("To", t.address(phone))
	form.Set("From", t.address(t.from))
	form.Set("Body", message)

	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return dispatch.NewChannelError("building twilio request", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return transportError("twilio", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw := readErrorBody(resp)
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(raw), &apiErr) == nil && apiErr.Message != "" {
			return dispatch.NewChannelError(fmt.Sprintf("twilio %d: %s", apiErr.Code, apiErr.Message), nil)
		}
		return dispatch.NewChannelError(statusDetail("twilio", resp.Status, raw), nil)
	}

	var created struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	logger.Debug("twilio message queued", "phone", phone, "sid", created.SID, "status", created.Status, "row", opts.Ordinal)
	return nil
}
