package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/lead-dispatch/internal/pkg/httpretry"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
)

const (
	// DefaultWhatsAppBaseURL is the Graph API root including the version.
	DefaultWhatsAppBaseURL = "https://graph.facebook.com/v19.0"
)

// WhatsApp sends text messages through the WhatsApp Business Cloud API.
type WhatsApp struct {
	token         string
	phoneNumberID string
	baseURL       string
	http          httpretry.HTTPDoer
}

// NewWhatsApp creates a Cloud API sender for the given business phone number.
func NewWhatsApp(token, phoneNumberID, baseURL string, timeout time.Duration, retries int) *WhatsApp {
	if baseURL == "" {
		baseURL = DefaultWhatsAppBaseURL
	}
	return &WhatsApp{
		token:         token,
		phoneNumberID: phoneNumberID,
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          newHTTPClient(timeout, retries),
	}
}

type waTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
	CallbackData string `json:"biz_opaque_callback_data,omitempty"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendInstant posts one text message to phone.
func (w *WhatsApp) SendInstant(ctx context.Context, phone, message string, opts dispatch.SendOptions) error {
	payload := waTextMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               digitsOnly(phone),
		Type:             "text",
	}
	payload.Text.Body = message
	if opts.RunID != "" {
		payload.CallbackData = fmt.Sprintf("%s:%d", opts.RunID, opts.Ordinal)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return dispatch.NewChannelError("encoding whatsapp message", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID), bytes.NewReader(body))
	if err != nil {
		return dispatch.NewChannelError("building whatsapp request", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return transportError("whatsapp", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var result waResponse
	json.Unmarshal(raw, &result)

	if resp.StatusCode >= 300 {
		if result.Error != nil && result.Error.Message != "" {
			return dispatch.NewChannelError(fmt.Sprintf("whatsapp (#%d) %s", result.Error.Code, result.Error.Message), nil)
		}
		return dispatch.NewChannelError(statusDetail("whatsapp", resp.Status, strings.TrimSpace(string(raw))), nil)
	}

	var id string
	if len(result.Messages) > 0 {
		id = result.Messages[0].ID
	}
	logger.Debug("whatsapp message accepted", "phone", phone, "message_id", id, "row", opts.Ordinal)
	return nil
}
