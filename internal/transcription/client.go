package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultErrorMessage is used when the service answers without a transcription or an error
const DefaultErrorMessage = "Unknown error occurred"

// Response matches the JSON body returned by POST /transcribe
type Response struct {
	Transcription string `json:"transcription"`
	Error         string `json:"error"`
	DocxSent      bool   `json:"docx_sent"`
	DifyResponse  string `json:"dify_response,omitempty"`
}

// SubmissionError describes one failed submission. Message is what the user sees.
type SubmissionError struct {
	Filename   string
	StatusCode int
	Message    string
	Err        error
}

// Error returns the user-facing message
func (e *SubmissionError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the underlying transport or decode error
func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Client submits audio files to the remote transcription service
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a client for the service at baseURL.
// A zero timeout keeps the http.Client default (no timeout).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a client using the provided http.Client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/transcribe",
		client:   httpClient,
	}
}

// Endpoint returns the full URL submissions are posted to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Transcribe posts one file as multipart field "file" and decodes the reply.
// Any outcome without a transcription is returned as a *SubmissionError.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (*Response, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, submissionFailure(filename, 0, err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, submissionFailure(filename, 0, fmt.Errorf("read audio payload: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, submissionFailure(filename, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, submissionFailure(filename, 0, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, submissionFailure(filename, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, submissionFailure(filename, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &SubmissionError{
			Filename:   filename,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("invalid response from transcription service (HTTP %d): %v", resp.StatusCode, err),
			Err:        err,
		}
	}

	if out.Transcription != "" {
		return &out, nil
	}

	msg := strings.TrimSpace(out.Error)
	if msg == "" {
		msg = DefaultErrorMessage
	}
	return nil, &SubmissionError{
		Filename:   filename,
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

// submissionFailure wraps a transport-level failure, keeping only the cause in the message
func submissionFailure(filename string, status int, err error) *SubmissionError {
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	if strings.TrimSpace(msg) == "" {
		msg = DefaultErrorMessage
	}
	return &SubmissionError{
		Filename:   filename,
		StatusCode: status,
		Message:    msg,
		Err:        err,
	}
}
