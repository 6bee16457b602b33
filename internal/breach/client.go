// Package breach implements the k-anonymity range-query client for checking
// passwords against a known-breach corpus. Only the first five characters of
// the SHA-1 hash ever leave the process.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/vaultec/vaultcore/internal/errs"
)

const (
	// DefaultBaseURL is the public range-query endpoint.
	DefaultBaseURL = "https://api.pwnedpasswords.com"

	// DefaultTimeout bounds a single range request.
	DefaultTimeout = 10 * time.Second

	userAgent = "vaultcore-engine"

	prefixLen = 5
)

// Result is the outcome of one breach check.
type Result struct {
	Breached bool
	Count    int
}

// Client queries a remote breach-range endpoint.
type Client struct {
	httpc   *http.Client
	baseURL string
}

// NewClient builds a Client with an in-memory caching transport: range
// responses for a given prefix are safe to reuse within a scan.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpc: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewClientWithHTTPClient builds a Client over a caller-provided http.Client.
// Intended for tests with an httptest server.
func NewClientWithHTTPClient(httpc *http.Client, baseURL string) *Client {
	return &Client{httpc: httpc, baseURL: strings.TrimRight(baseURL, "/")}
}

// HashPassword returns the uppercase hex SHA-1 of the plaintext, the fixed
// scheme of the range protocol.
func HashPassword(plaintext string) string {
	sum := sha1.Sum([]byte(plaintext))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Check reports whether plaintext appears in the breach corpus.
//
// On any network or parse failure it returns the zero Result together with an
// error wrapping errs.ErrOracleUnavailable: callers persist the safe default
// and log, so a check failure never blocks the surrounding flow, while staying
// distinguishable from a genuine negative.
func (c *Client) Check(ctx context.Context, plaintext string) (Result, error) {
	hash := HashPassword(plaintext)
	prefix, suffix := hash[:prefixLen], hash[prefixLen:]

	url := c.baseURL + "/range/" + prefix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", errs.ErrOracleUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: status %d", errs.ErrOracleUnavailable, resp.StatusCode)
	}

	res, err := matchSuffix(resp.Body, suffix)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.ErrOracleUnavailable, err)
	}
	return res, nil
}

// matchSuffix scans newline-delimited "SUFFIX:COUNT" lines for the given
// suffix. Matching is whitespace- and case-insensitive; first match wins.
func matchSuffix(body io.Reader, suffix string) (Result, error) {
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		got, countStr, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(got), suffix) {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return Result{}, fmt.Errorf("bad count %q: %v", countStr, err)
		}
		return Result{Breached: true, Count: count}, nil
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}
