package stability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Static errors for Stability client operations.
var (
	// ErrAPIKeyNotSet is returned when the STABLE_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("stability: STABLE_API_KEY environment variable is not set")
	// ErrInvalidGenerationID is returned when a generation ID is not exactly 64 characters.
	ErrInvalidGenerationID = errors.New("stability: invalid generation ID")
	// ErrNoGenerationID is returned when the submit response contains no generation ID.
	ErrNoGenerationID = errors.New("stability: submit failed: no generation ID returned")
	// ErrInvalidOptions is returned when submit options are out of range.
	ErrInvalidOptions = errors.New("stability: invalid submit options")
	// ErrRequestFailed is returned when the API answers with an unexpected status code.
	ErrRequestFailed = errors.New("stability: request failed")
)

// DefaultBaseURL is the public Stability API authority.
const DefaultBaseURL = "https://api.stability.ai"

// Client defines the interface for interacting with the image-to-video API.
type Client interface {
	// Submit uploads the image at imagePath and returns the generation ID.
	Submit(ctx context.Context, imagePath string, opts SubmitOptions) (generationID string, err error)

	// Poll fetches the state of a generation once.
	Poll(ctx context.Context, generationID string) (PollResult, error)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// NewClient creates a new Stability HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable STABLE_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		validate:   validator.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("STABLE_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Submit uploads the image with the generation parameters as multipart form data.
// Only HTTP 200 is treated as success; the request is never retried.
func (c *HTTPClient) Submit(ctx context.Context, imagePath string, opts SubmitOptions) (string, error) {
	if err := c.validate.Struct(opts); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidOptions, err.Error())
	}

	body, contentType, err := encodeSubmitForm(imagePath, opts)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2beta/image-to-video", body)
	if err != nil {
		return "", fmt.Errorf("stability: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	status, _, respBody, err := c.do(req)
	if err != nil {
		return "", err
	}

	if status != http.StatusOK {
		return "", newAPIError(status, respBody)
	}

	var resp submitResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("stability: unmarshal response: %w", err)
	}
	if resp.ID == "" {
		return "", ErrNoGenerationID
	}

	return resp.ID, nil
}

// Poll checks the state of a generation. A 202 maps to StatusInProgress and a
// 200 to StatusComplete carrying the body bytes; any other status is returned
// as an *APIError.
func (c *HTTPClient) Poll(ctx context.Context, generationID string) (PollResult, error) {
	if !ValidGenerationID(generationID) {
		return PollResult{}, fmt.Errorf("%w: want %d characters, got %d", ErrInvalidGenerationID, GenerationIDLength, len(generationID))
	}

	url := fmt.Sprintf("%s/v2beta/image-to-video/result/%s", c.baseURL, generationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("stability: create request: %w", err)
	}
	req.Header.Set("Accept", "video/*")

	status, header, respBody, err := c.do(req)
	if err != nil {
		return PollResult{}, err
	}

	switch status {
	case http.StatusAccepted:
		return PollResult{Status: StatusInProgress}, nil
	case http.StatusOK:
		return PollResult{
			Status:       StatusComplete,
			Video:        respBody,
			ContentType:  header.Get("Content-Type"),
			FinishReason: header.Get("Finish-Reason"),
			Seed:         header.Get("Seed"),
		}, nil
	default:
		return PollResult{Status: StatusFailed}, newAPIError(status, respBody)
	}
}

// do sends an authenticated request and reads the whole response body.
func (c *HTTPClient) do(req *http.Request) (int, http.Header, []byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("stability: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("stability: read response: %w", err)
	}

	return resp.StatusCode, resp.Header, respBody, nil
}

// encodeSubmitForm builds the multipart body for a submission.
func encodeSubmitForm(imagePath string, opts SubmitOptions) (io.Reader, string, error) {
	f, err := os.Open(imagePath) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, "", fmt.Errorf("stability: open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	partType := mime.TypeByExtension(filepath.Ext(imagePath))
	if partType == "" {
		partType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(imagePath)))
	h.Set("Content-Type", partType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("stability: create image part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("stability: read image: %w", err)
	}

	fields := []struct{ name, value string }{
		{"seed", strconv.FormatInt(opts.Seed, 10)},
		{"cfg_scale", strconv.FormatFloat(opts.CfgScale, 'f', -1, 64)},
		{"motion_bucket_id", strconv.Itoa(opts.MotionBucketID)},
	}
	for _, field := range fields {
		if err := w.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("stability: write field %s: %w", field.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("stability: close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// newAPIError decodes the API's error payload, keeping the raw body as a fallback.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Body:       string(body),
	}
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Name = payload.Name
		apiErr.Errors = payload.Errors
	}
	return apiErr
}
