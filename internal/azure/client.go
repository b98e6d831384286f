package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/codebuildervaibhav/hillmyna/internal/credentials"
)

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// Observer is notified after every request with the operation name, the
// HTTP status (0 on transport failure) and the request latency.
type Observer func(op string, status int, elapsed time.Duration)

// Option configures a client.
type Option func(*options)

type options struct {
	log               *logrus.Entry
	httpClient        *http.Client
	retryMax          int
	retryWaitMin      time.Duration
	retryWaitMax      time.Duration
	requestsPerMinute int
	observer          Observer
	checkInterval     time.Duration
	timeout           time.Duration
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithRetry sets how many times transient failures are retried and the
// backoff bounds between attempts.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(o *options) {
		o.retryMax = max
		o.retryWaitMin = waitMin
		o.retryWaitMax = waitMax
	}
}

// WithRequestsPerMinute throttles requests to the given quota. Zero or a
// negative value disables throttling.
func WithRequestsPerMinute(n int) Option {
	return func(o *options) {
		o.requestsPerMinute = n
	}
}

// WithObserver registers a callback run after every request.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithOperationPolling sets how often WaitOperation queries an operation
// and how long it waits in total. Only identification clients poll.
func WithOperationPolling(interval, timeout time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.checkInterval = interval
		}
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// restClient performs authenticated requests against one Azure resource.
type restClient struct {
	creds    credentials.Credentials
	http     *retryablehttp.Client
	limiter  *rate.Limiter
	log      *logrus.Entry
	observer Observer

	checkInterval time.Duration
	timeout       time.Duration
}

type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	header  map[string]string
	body    io.Reader
	jsonObj any
}

func newRESTClient(creds credentials.Credentials, opts ...Option) *restClient {
	o := options{
		retryMax:      3,
		retryWaitMin:  time.Second,
		retryWaitMax:  30 * time.Second,
		checkInterval: 30 * time.Second,
		timeout:       10 * time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if o.requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.requestsPerMinute)), 1)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = o.retryMax
	rc.RetryWaitMin = o.retryWaitMin
	rc.RetryWaitMax = o.retryWaitMax
	rc.Logger = nil
	if o.httpClient != nil {
		rc.HTTPClient = o.httpClient
	}
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			o.log.Debugf("Retrying %s %s (attempt %d)", req.Method, req.URL, attempt+1)
		}
	}
	// Return the last response instead of a generic error so the Azure
	// error body can be reported.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	// Retries count against the request budget too.
	rc.PrepareRetry = func(req *http.Request) error {
		return limiter.Wait(req.Context())
	}

	return &restClient{
		creds:    creds,
		http:     rc,
		limiter:  limiter,
		log:      o.log,
		observer: o.observer,

		checkInterval: o.checkInterval,
		timeout:       o.timeout,
	}
}

func (c *restClient) url(path string, query url.Values) string {
	u := c.creds.Endpoint + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *restClient) do(ctx context.Context, r request) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}

	body := r.body
	if r.jsonObj != nil {
		b, err := json.Marshal(r.jsonObj)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, c.url(r.path, r.query), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	req.Header.Set(subscriptionKeyHeader, c.creds.Key)
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(r.op, 0, elapsed)
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	defer resp.Body.Close()

	c.log.Debugf("%s %s responded with %d: %s", r.method, req.URL.String(), resp.StatusCode, http.StatusText(resp.StatusCode))
	c.observe(r.op, resp.StatusCode, elapsed)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", r.op, err)
	}

	return &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *restClient) observe(op string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(op, status, elapsed)
	}
}

// apiError builds an *APIError from an Azure error body. Bodies that are not
// the usual {"error": {"code", "message"}} shape are reported verbatim.
func apiError(op string, resp *response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	e := &APIError{Op: op, StatusCode: resp.StatusCode}
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Error.Message != "" {
		e.Code = body.Error.Code
		e.Message = body.Error.Message
		return e
	}

	msg := strings.TrimSpace(string(resp.Body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	e.Message = msg
	return e
}

func decode(op string, resp *response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
