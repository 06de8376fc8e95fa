package apod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"apodfeed/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultHost      = "https://api.nasa.gov"
	DemoKey          = "DEMO_KEY"
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "apodfeed"

	apodPath   = "/planetary/apod"
	dateLayout = "2006-01-02"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apodfeed_api_requests_total",
		Help: "The total number of requests sent to the APOD API by response status",
	}, []string{"status"})

	apiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apodfeed_api_request_duration_seconds",
		Help:    "Duration of APOD API requests",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // Start at 50ms, double each bucket
	})
)

// Config holds the settings used to construct a Client
type Config struct {
	Host            string
	ApiKey          string
	Timeout         time.Duration
	RequestsPerHour int
	UserAgent       string

	// Transport is the underlying round tripper, a tuned http.Transport when nil
	Transport http.RoundTripper
}

// APIError is returned when the API answers with a non-2xx status
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("apod api returned status %d", e.StatusCode)
	}
	if e.Code == "" {
		return fmt.Sprintf("apod api returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("apod api returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

type Client struct {
	host      string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// apiKeyTransport adds the api_key query parameter to every GET request
type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}

	// Round trippers must not modify the original request
	clone := req.Clone(req.Context())
	q := clone.URL.Query()
	q.Set("api_key", t.key)
	clone.URL.RawQuery = q.Encode()

	return t.next.RoundTrip(clone)
}

func NewClient(config Config) *Client {
	host := strings.TrimSuffix(config.Host, "/")
	if host == "" {
		host = DefaultHost
	}

	key := config.ApiKey
	if key == "" {
		key = DemoKey
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	next := config.Transport
	if next == nil {
		next = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		}
	}

	// Zero means no client side limit
	limit := rate.Inf
	if config.RequestsPerHour > 0 {
		limit = rate.Every(time.Hour / time.Duration(config.RequestsPerHour))
	}

	return &Client{
		host: host,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &apiKeyTransport{key: key, next: next},
		},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: userAgent,
	}
}

// GetRange returns all entries with a date between start and end, both inclusive.
// Entries are returned in the order the API sends them.
func (c *Client) GetRange(ctx context.Context, start, end time.Time) ([]models.Entry, error) {
	params := url.Values{}
	params.Set("start_date", start.UTC().Format(dateLayout))
	params.Set("end_date", end.UTC().Format(dateLayout))
	return c.get(ctx, params)
}

// GetDate returns the entry published on a single day
func (c *Client) GetDate(ctx context.Context, date time.Time) (*models.Entry, error) {
	params := url.Values{}
	params.Set("date", date.UTC().Format(dateLayout))

	entries, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entry for %s", params.Get("date"))
	}
	return &entries[0], nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]models.Entry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u, err := url.Parse(c.host + apodPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	apiRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		apiRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	apiRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	log.WithFields(log.Fields{
		"path":    apodPath,
		"params":  params.Encode(),
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("APOD API request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	return decodeEntries(body)
}

// decodeEntries accepts both a JSON array of entries and a single entry object
func decodeEntries(body []byte) ([]models.Entry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '{' {
		var entry models.Entry
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			return nil, fmt.Errorf("malformed entry: %w", err)
		}
		return []models.Entry{entry}, nil
	}

	var entries []models.Entry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("malformed entries: %w", err)
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	return entries, nil
}

// parseAPIError understands both error shapes the API uses:
// {"code": 400, "msg": "..."} and {"error": {"code": "...", "message": "..."}}
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var flat struct {
		Code json.Number `json:"code"`
		Msg  string      `json:"msg"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Msg != "" {
		apiErr.Code = flat.Code.String()
		apiErr.Message = flat.Msg
		return apiErr
	}

	var nested struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		apiErr.Code = nested.Error.Code
		apiErr.Message = nested.Error.Message
	}

	return apiErr
}
