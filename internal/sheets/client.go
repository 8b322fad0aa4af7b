// Package sheets reads and updates the lead table in a Google Sheets
// worksheet through the Sheets v4 REST API.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/pkg/httpretry"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultBaseURL is the public Sheets API endpoint.
	DefaultBaseURL = "https://sheets.googleapis.com"
	scope          = "https://www.googleapis.com/auth/spreadsheets"
)

// Client is a dispatch.TableSource and dispatch.TableWriter for one worksheet.
type Client struct {
	http      httpretry.HTTPDoer
	baseURL   string
	sheetID   string
	sheetName string
}

// Options configures a Client.
type Options struct {
	CredentialsFile string
	SheetID         string
	SheetName       string
	BaseURL         string
	Timeout         time.Duration
	Retries         int
}

// New authenticates with a service-account key file and returns a Client.
// The worksheet must be shared with the service account's e-mail address.
func New(ctx context.Context, opts Options) (*Client, error) {
	key, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading credentials: %v", dispatch.ErrConfiguration, err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(key, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing credentials: %v", dispatch.ErrConfiguration, err)
	}

	httpClient := jwtCfg.Client(ctx)
	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	}
	return NewWithHTTP(httpretry.NewRetryClient(httpClient, opts.Retries), opts.BaseURL, opts.SheetID, opts.SheetName), nil
}

// NewWithHTTP builds a Client around an already authenticated HTTP client.
func NewWithHTTP(doer httpretry.HTTPDoer, baseURL, sheetID, sheetName string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:      doer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		sheetID:   sheetID,
		sheetName: sheetName,
	}
}

type valueRange struct {
	Range          string     `json:"range,omitempty"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]string `json:"values"`
}

// FetchAll returns the worksheet's header and rows as formatted text.
func (c *Client) FetchAll(ctx context.Context) (*domain.Dataset, error) {
	q := url.Values{}
	q.Set("majorDimension", "ROWS")
	q.Set("valueRenderOption", "FORMATTED_VALUE")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.valuesURL(quoteSheet(c.sheetName))+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", dispatch.ErrConnection, err)
	}

	var vr valueRange
	if err := c.do(req, &vr); err != nil {
		return nil, fmt.Errorf("%w: fetching sheet %s: %v", dispatch.ErrConnection, c.sheetID, err)
	}

	ds := &domain.Dataset{}
	if len(vr.Values) > 0 {
		ds.Header = vr.Values[0]
		ds.Rows = vr.Values[1:]
	}
	return ds, nil
}

// SetCell writes value as raw text at the given 1-based row and 0-based column.
func (c *Client) SetCell(ctx context.Context, ordinal, column int, value string) error {
	a1 := quoteSheet(c.sheetName) + "!" + CellRef(ordinal, column)
	body, err := json.Marshal(valueRange{
		Range:          a1,
		MajorDimension: "ROWS",
		Values:         [][]string{{value}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.valuesURL(a1)+"?valueInputOption=RAW", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) valuesURL(a1 string) string {
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s", c.baseURL, url.PathEscape(c.sheetID), url.PathEscape(a1))
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sheets API %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CellRef converts a 1-based row and 0-based column to A1 notation.
func CellRef(row, column int) string {
	return ColumnLetters(column) + fmt.Sprint(row)
}

// ColumnLetters converts a 0-based column index to A, B, ..., Z, AA, AB, ...
func ColumnLetters(column int) string {
	var b []byte
	for n := column + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
