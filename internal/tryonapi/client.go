package tryonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"tryon-web/internal/domain"

	"github.com/wb-go/wbf/zlog"
)

const (
	DefaultTimeout = 60 * time.Second
	tryOnPath      = "/api/try-on"
	maxErrorBody   = 4096
)

// Client talks to the try-on generation service. Requests are never retried.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zlog.Zerolog
}

func NewClient(baseURL string, timeout time.Duration, logger *zlog.Zerolog) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// TryOn sends both images in one multipart request.
func (c *Client) TryOn(ctx context.Context, person, clothing *domain.File) (*domain.TryOnResult, error) {
	if person == nil || clothing == nil {
		return nil, ErrMissingFile
	}

	body, contentType, err := buildTryOnBody(person, clothing)
	if err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tryOnPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), maxErrorBody)}
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("body", statusErr.Body).
			Dur("elapsed", time.Since(start)).
			Msg("Try-on request failed")
		return nil, statusErr
	}

	var result domain.TryOnResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		c.logger.Error().Err(err).Str("body", truncate(string(respBody), maxErrorBody)).Msg("Failed to decode try-on response")
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	c.logger.Info().
		Bool("success", result.Success).
		Bool("has_image", result.ResultImage != "").
		Dur("elapsed", time.Since(start)).
		Msg("Try-on request completed")

	return &result, nil
}

// Health probes the service root and returns its body.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	return string(body), nil
}

func (c *Client) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.logger.Error().Err(err).Dur("timeout", c.timeout).Msg("Try-on request timed out")
		return &TimeoutError{After: c.timeout}
	}

	c.logger.Error().Err(err).Str("base_url", c.baseURL).Msg("Try-on service unreachable")
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func buildTryOnBody(person, clothing *domain.File) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writeFilePart(writer, domain.SlotPerson.FormField(), person); err != nil {
		return nil, "", err
	}
	if err := writeFilePart(writer, domain.SlotClothing.FormField(), clothing); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(writer *multipart.Writer, field string, file *domain.File) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(file.Name)))

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("failed to write %s part: %w", field, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
