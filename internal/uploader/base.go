package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lister/internal/config"
	"lister/internal/logging"
)

// PlatformBASE is the registry key for the BASE marketplace.
const PlatformBASE = "base"

// HTTPDoer describes the HTTP client used by the BASE uploader.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Base uploads listings to the BASE marketplace API.
type Base struct {
	cfg     *config.Config
	account config.Account
	baseURL string
	token   string
	client  HTTPDoer
	logger  *slog.Logger
}

var _ Uploader = (*Base)(nil)

// NewBase builds the BASE uploader for one seller account. The account
// token takes precedence over the platform-level token.
func NewBase(cfg *config.Config, account config.Account, logger *slog.Logger) (Uploader, error) {
	platform, ok := cfg.Platforms[PlatformBASE]
	if !ok || !platform.Enabled {
		return nil, fmt.Errorf("platform %q is not enabled in configuration", PlatformBASE)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(platform.APIBaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("platform %q has no api_base_url", PlatformBASE)
	}
	token := strings.TrimSpace(account.APIToken)
	if token == "" {
		token = strings.TrimSpace(platform.APIToken)
	}
	if token == "" {
		return nil, fmt.Errorf("no api token configured for %s account %q", PlatformBASE, account.ID)
	}
	return &Base{
		cfg:     cfg,
		account: account,
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logging.NewComponentLogger(logger, "uploader.base"),
	}, nil
}

// WithHTTPClient overrides the HTTP client (used in tests).
func (b *Base) WithHTTPClient(client HTTPDoer) *Base {
	if client != nil {
		b.client = client
	}
	return b
}

func (b *Base) Platform() string {
	return PlatformBASE
}

func (b *Base) BusinessHours() config.BusinessHours {
	return b.cfg.AccountBusinessHours(b.account)
}

func (b *Base) RateLimit() time.Duration {
	return time.Duration(b.cfg.Dispatch.RateLimitSeconds * float64(time.Second))
}

// ValidateItem rejects requests the marketplace would refuse, before any
// API call is spent.
func (b *Base) ValidateItem(req *Request) error {
	if req == nil {
		return NewValidationError("empty request")
	}
	if strings.TrimSpace(req.Title) == "" {
		return NewValidationError("title is required")
	}
	if strings.TrimSpace(req.SKU) == "" {
		return NewValidationError("sku is required")
	}
	if req.SellingPrice <= 0 {
		return NewValidationError("selling price must be positive, got %d", req.SellingPrice)
	}
	return nil
}

type baseItem struct {
	ItemID     int64  `json:"item_id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Visible    int    `json:"visible"`
}

type baseItemResponse struct {
	Item baseItem `json:"item"`
}

type baseSearchResponse struct {
	Items []baseItem `json:"items"`
}

type baseErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// UploadItem registers the listing via items/add and returns the
// marketplace item id.
func (b *Base) UploadItem(ctx context.Context, req *Request) (*Result, error) {
	form := url.Values{}
	form.Set("title", req.Title)
	form.Set("detail", req.Description)
	form.Set("price", strconv.Itoa(req.SellingPrice))
	form.Set("stock", "1")
	form.Set("identifier", req.SKU)
	form.Set("visible", "1")

	var payload baseItemResponse
	if err := b.post(ctx, "/1/items/add", form, &payload); err != nil {
		return nil, err
	}
	if payload.Item.ItemID == 0 {
		return nil, NewPermanentError("items/add returned no item id", nil)
	}
	return &Result{
		Status:         StatusOK,
		PlatformItemID: strconv.FormatInt(payload.Item.ItemID, 10),
		Message:        "uploaded",
	}, nil
}

// UploadImages attaches each URL via items/add_image. A failed image is
// counted and reported; the listing itself stays valid.
func (b *Base) UploadImages(ctx context.Context, platformItemID string, urls []string) (*ImagesResult, error) {
	if len(urls) == 0 {
		return &ImagesResult{Status: StatusOK}, nil
	}

	result := &ImagesResult{Status: StatusOK}
	var lastErr error
	for i, imageURL := range urls {
		form := url.Values{}
		form.Set("item_id", platformItemID)
		form.Set("image_no", strconv.Itoa(i+1))
		form.Set("image_url", imageURL)

		var payload baseItemResponse
		if err := b.post(ctx, "/1/items/add_image", form, &payload); err != nil {
			lastErr = err
			b.logger.Warn("image upload failed",
				logging.Error(err),
				logging.String("image_url", imageURL),
				logging.String(logging.FieldAccountID, b.account.ID),
			)
			continue
		}
		result.UploadedCount++
	}

	if result.UploadedCount < len(urls) {
		result.Status = StatusPartial
		result.Message = fmt.Sprintf("uploaded %d/%d images", result.UploadedCount, len(urls))
		if result.UploadedCount == 0 && lastErr != nil {
			return result, lastErr
		}
	}
	return result, nil
}

// CheckDuplicate searches the marketplace by SKU and reports true only
// for a visible listed item carrying that identifier.
func (b *Base) CheckDuplicate(ctx context.Context, asin, sku string) (bool, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return false, nil
	}
	endpoint, err := url.Parse(b.baseURL + "/1/items/search")
	if err != nil {
		return false, fmt.Errorf("parse search url: %w", err)
	}
	params := url.Values{}
	params.Set("q", sku)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)

	resp, err := b.client.Do(req)
	if err != nil {
		return false, NewTransientError("items/search request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, b.statusError("items/search", resp)
	}

	var payload baseSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("decode search response: %w", err)
	}
	for _, item := range payload.Items {
		if item.Identifier == sku && item.Visible == 1 {
			return true, nil
		}
	}
	return false, nil
}

func (b *Base) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return NewTransientError(path+" request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return b.statusError(path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewPermanentError(fmt.Sprintf("decode %s response", path), err)
	}
	return nil
}

// statusError classifies an HTTP failure: rate limiting and server errors
// are retryable, everything else is permanent.
func (b *Base) statusError(path string, resp *http.Response) error {
	var payload baseErrorResponse
	detail := ""
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		detail = payload.Error
		if payload.ErrorDescription != "" {
			detail += ": " + payload.ErrorDescription
		}
	}
	message := fmt.Sprintf("%s returned %d", path, resp.StatusCode)
	if detail != "" {
		message += " (" + detail + ")"
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return NewTransientError(message, nil)
	}
	return NewPermanentError(message, nil)
}
