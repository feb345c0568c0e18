// Package dbfs implements blob.Remote over the Databricks File System REST
// API (2.0).
//
// Every call goes through one rate limiter so listing fan-out cannot exceed
// the workspace's request quota. Reads and writes move data in base64 blocks
// of at most 1 MiB, the API's per-call limit.
package dbfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"lakeio/internal/blob"
	"lakeio/internal/metrics"
)

const (
	apiPrefix = "/api/2.0/dbfs/"

	// maxBlock is the largest payload read/add-block accept per call.
	maxBlock = 1 << 20

	defaultRequestsPerSecond = 20
	defaultTimeout           = 60 * time.Second
)

func init() {
	blob.Register("dbfs", func(_ context.Context, cfg blob.Config) (blob.Remote, error) {
		return New(Options{
			BaseURL:           cfg.BaseURL,
			Token:             cfg.Token,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
	})
}

// Options configures a Remote.
//
// Edge cases:
//   - RequestsPerSecond <= 0 uses 20 req/s with a burst of the same size.
//   - BlockSize <= 0 or > 1 MiB uses 1 MiB.
//   - HTTPClient nil uses a client with a 60s timeout.
type Options struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
	BlockSize         int
	HTTPClient        *http.Client
}

// Remote talks to one Databricks workspace.
type Remote struct {
	base    *url.URL
	token   string
	hc      *http.Client
	limiter *rate.Limiter
	block   int
}

// New validates opts and returns a Remote. It does not contact the service.
func New(opts Options) (*Remote, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("dbfs: base url is empty")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("dbfs: token is empty")
	}
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("dbfs: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("dbfs: base url %q must be http(s)", opts.BaseURL)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	block := opts.BlockSize
	if block <= 0 || block > maxBlock {
		block = maxBlock
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	return &Remote{
		base:    u,
		token:   opts.Token,
		hc:      hc,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		block:   block,
	}, nil
}

// call issues one API request. A nil in is sent as a query-only GET; out may be nil.
func (r *Remote) call(ctx context.Context, method, endpoint string, query url.Values, in, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *r.base
	u.Path = strings.TrimRight(u.Path, "/") + apiPrefix + endpoint
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("dbfs: %s: encode request: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("dbfs: %s: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := r.hc.Do(req)
	if err != nil {
		metrics.RecordHTTP(0, err, time.Since(start), 0)
		return fmt.Errorf("dbfs: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, apiErr) != nil || (apiErr.Message == "" && apiErr.ErrorCode == "") {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		metrics.RecordHTTP(resp.StatusCode, apiErr, time.Since(start), 0)
		return apiErr
	}

	var n int64
	if out != nil {
		cr := &countingReader{r: resp.Body}
		err = json.NewDecoder(cr).Decode(out)
		n = cr.n
		if err != nil {
			err = fmt.Errorf("dbfs: %s: decode response: %w", endpoint, err)
		}
	}
	metrics.RecordHTTP(resp.StatusCode, err, time.Since(start), n)
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
