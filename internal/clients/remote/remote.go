package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/platform/httpx"
)

// Kind classifies a downstream failure. Callers must branch on all three:
// a timeout is never a not-found, and a validation rejection is never an
// availability problem.
type Kind int

const (
	KindUnavailable Kind = iota
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "unavailable"
	}
}

type Error struct {
	Kind   Kind
	Status int
	Detail string

	retryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote %s (%d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("remote %s (%d)", e.Kind, e.Status)
}

func (e *Error) HTTPStatusCode() int { return e.Status }

// ErrorKind extracts the classification from err. ok is false when err is
// not a remote call failure.
func ErrorKind(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool {
	k, ok := ErrorKind(err)
	return ok && k == KindValidation
}

func IsNotFound(err error) bool {
	k, ok := ErrorKind(err)
	return ok && k == KindNotFound
}

func IsUnavailable(err error) bool {
	k, ok := ErrorKind(err)
	return ok && k == KindUnavailable
}

// validationBody is the structured rejection payload the downstream services
// return on 400/422 (FastAPI-style detail field).
type validationBody struct {
	Detail json.RawMessage `json:"detail"`
}

// Caller is a long-lived, stateless JSON request helper shared by all
// service clients. Safe for concurrent use.
type Caller struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
}

func NewCaller(log *logger.Logger, baseURL string, timeout time.Duration) *Caller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Caller{
		log:        log,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Caller) BaseURL() string { return c.baseURL }

const (
	maxGetAttempts = 3
	retryBaseDelay = 200 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

// Do performs one JSON call. body and out may be nil. A nil error means the
// downstream returned 2xx and out (if non-nil) was decoded. GETs are retried
// on transient failures; anything with a body is sent exactly once.
func (c *Caller) Do(ctx context.Context, method, path string, query url.Values, headers http.Header, body, out any) error {
	attempts := 1
	if method == http.MethodGet {
		attempts = maxGetAttempts
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay
			var re *Error
			if errors.As(err, &re) && re.retryAfter > 0 {
				delay = re.retryAfter
			}
			select {
			case <-time.After(httpx.JitterSleep(delay)):
			case <-ctx.Done():
				return err
			}
		}
		err = c.do(ctx, method, path, query, headers, body, out)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

// retryable covers transport failures and 5xx-class statuses; validation and
// not-found outcomes are definitive and never retried.
func retryable(err error) bool {
	var re *Error
	if errors.As(err, &re) && re.Status == 0 {
		return true
	}
	return httpx.IsRetryableError(err)
}

func (c *Caller) do(ctx context.Context, method, path string, query url.Values, headers http.Header, body, out any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failure or timeout: the service could not be reached.
		c.log.Warn("Remote call failed", "method", method, "url", fullURL, "error", err)
		return &Error{Kind: KindUnavailable, Status: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Kind: KindUnavailable, Status: resp.StatusCode, Detail: "unreadable response body"}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Kind: KindUnavailable, Status: resp.StatusCode, Detail: "unparseable response body"}
		}
		return nil
	}

	ce := c.classify(resp.StatusCode, raw)
	// A Retry-After hint from a throttling or recovering service overrides
	// the default backoff, capped so a hostile header cannot stall a request.
	ce.retryAfter = httpx.RetryAfterDuration(resp, 0, maxRetryDelay)
	return ce
}

func (c *Caller) classify(status int, raw []byte) *Error {
	switch {
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Status: status, Detail: detailString(raw)}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		var vb validationBody
		if err := json.Unmarshal(raw, &vb); err == nil && len(vb.Detail) > 0 {
			return &Error{Kind: KindValidation, Status: status, Detail: string(vb.Detail)}
		}
		// 4xx without a structured payload is not a validation outcome.
		return &Error{Kind: KindUnavailable, Status: status, Detail: detailString(raw)}
	default:
		return &Error{Kind: KindUnavailable, Status: status, Detail: detailString(raw)}
	}
}

func detailString(raw []byte) string {
	var vb validationBody
	if err := json.Unmarshal(raw, &vb); err == nil && len(vb.Detail) > 0 {
		return string(vb.Detail)
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
