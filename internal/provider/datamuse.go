package provider

import (
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
)

// Datamuse defaults.
const (
	DefaultDatamuseURL = "https://api.datamuse.com"
	DefaultMaxResults  = 10
	DefaultTimeout     = 30 * time.Second
)

// Datamuse queries the Datamuse word API over HTTP.
//
// PartsOfSpeech uses the spelling endpoint (sp=word, md=p) and takes the tags
// of the first match. Candidates uses the synonym endpoint (rel_syn=word,
// md=p) capped at MaxResults.
//
// Thread-safety: Datamuse is safe for concurrent use.
type Datamuse struct {
	baseURL    string
	maxResults int
	client     *http.Client
}

// DatamuseOption configures a Datamuse provider.
type DatamuseOption func(*Datamuse)

// WithBaseURL overrides the API root (used by tests with httptest servers).
func WithBaseURL(u string) DatamuseOption {
	return func(d *Datamuse) { d.baseURL = strings.TrimRight(u, "/") }
}

// WithMaxResults caps the number of synonym candidates requested.
func WithMaxResults(n int) DatamuseOption {
	return func(d *Datamuse) {
		if n > 0 {
			d.maxResults = n
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DatamuseOption {
	return func(d *Datamuse) { d.client = c }
}

// WithTimeout builds the default HTTP client with the given total timeout.
func WithTimeout(timeout time.Duration) DatamuseOption {
	return func(d *Datamuse) { d.client = newHTTPClient(timeout) }
}

// NewDatamuse creates a Datamuse provider with a tuned default client.
func NewDatamuse(opts ...DatamuseOption) *Datamuse {
	d := &Datamuse{
		baseURL:    DefaultDatamuseURL,
		maxResults: DefaultMaxResults,
		client:     newHTTPClient(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// newHTTPClient returns a client with dial and header timeouts, so a stalled
// connection surfaces as a transient error instead of hanging a resolution.
func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	tr := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		ForceAttemptHTTP2: true,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

// datamuseWord is one element of a Datamuse response array.
type datamuseWord struct {
	Word  string   `json:"word"`
	Score int      `json:"score"`
	Tags  []string `json:"tags"`
}

// PartsOfSpeech implements Provider.
func (d *Datamuse) PartsOfSpeech(ctx context.Context, word string) ([]string, error) {
	q := url.Values{}
	q.Set("sp", word)
	q.Set("md", "p")

	words, err := d.query(ctx, "parts_of_speech", word, q)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, nil
	}
	return words[0].Tags, nil
}

// Candidates implements Provider.
func (d *Datamuse) Candidates(ctx context.Context, word string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("rel_syn", word)
	q.Set("md", "p")
	q.Set("max", strconv.Itoa(d.maxResults))

	words, err := d.query(ctx, "candidates", word, q)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(words))
	for _, w := range words {
		if w.Word == "" {
			continue
		}
		out = append(out, Candidate{Word: w.Word, Tags: w.Tags})
	}
	return out, nil
}

// query performs one GET against /words. Transport failures, 5xx and 429 are
// transient; any other non-200 status or an undecodable body is treated as an
// empty answer.
func (d *Datamuse) query(ctx context.Context, op, word string, q url.Values) ([]datamuseWord, error) {
	endpoint := d.baseURL + "/words?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %q: build request: %w", op, word, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Op: op, Word: word, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransientError{Op: op, Word: word, Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: op, Word: word, Err: err}
	}

	var words []datamuseWord
	if err := json.Unmarshal(body, &words); err != nil {
		return nil, nil
	}
	return words, nil
}
