// Package neso is a minimal client for the NESO CKAN datastore API, used by
// the ingestion pipeline to fetch Historic GB Generation Mix rows within a
// given UTC time window. Pagination is offset based and deterministic:
// queries are ordered ascending by the upstream DATETIME field so adjacent
// pages never overlap and never leave gaps.
package neso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/stream"
)

// FetchError is a network/API failure for one page request. Retriable means
// the attempts were exhausted on transient failures and a later re-run of the
// same window may succeed; non-retriable means the request itself is bad.
// Either way it carries enough context to re-run exactly the failed window.
type FetchError struct {
	Window    stream.Window
	Offset    int
	Retriable bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "non-retriable"
	if e.Retriable {
		kind = "retriable"
	}
	return fmt.Sprintf("%v fetch error for window %v at offset %v: %v", kind, e.Window, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Page is one page of raw records as returned by the datastore, plus the
// total result count when upstream chooses to report one.
type Page struct {
	Records  []map[string]interface{}
	Total    int
	HasTotal bool
}

// Client issues datastore_search_sql queries with a bounded timeout, retry
// with exponential backoff and jitter for transient failures, and a circuit
// breaker so a dead upstream fails fast instead of burning full retry cycles
// per page.
type Client struct {
	log            logger.Logger
	baseApi        string
	resourceId     string
	http           *http.Client
	breaker        *gobreaker.CircuitBreaker
	maxAttempts    int
	backoffInitial time.Duration
	backoffMax     time.Duration
}

func NewClient(log logger.Logger, baseApi string, resourceId string) *Client {
	return &Client{
		log:        log,
		baseApi:    strings.TrimRight(baseApi, "/"),
		resourceId: resourceId,
		http:       &http.Client{Timeout: time.Second * c.HttpTimeoutSeconds},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "neso",
			Interval: time.Minute,
			Timeout:  2 * time.Minute,
		}),
		maxAttempts:    c.HttpMaxAttempts,
		backoffInitial: time.Millisecond * c.HttpBackoffInitialMs,
		backoffMax:     time.Second * c.HttpBackoffMaxSeconds,
	}
}

// BuildSQL returns a datastore_search_sql statement selecting the requested
// columns (or * when none are given) for the half-open window w, ordered
// ascending by DATETIME for stable pagination.
func BuildSQL(resourceId string, w stream.Window, columns []string) string {
	selectCols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for idx, col := range columns {
			if strings.HasPrefix(col, `"`) { // if already quoted, keep as-is...
				quoted[idx] = col
			} else {
				quoted[idx] = `"` + col + `"`
			}
		}
		selectCols = strings.Join(quoted, ",")
	}
	return fmt.Sprintf(
		`SELECT %v FROM %q WHERE %q >= '%v' AND %q < '%v' ORDER BY %q ASC`,
		selectCols, resourceId,
		c.UpstreamDatetimeField, w.Start.Format(c.TimeFormatWindow),
		c.UpstreamDatetimeField, w.End.Format(c.TimeFormatWindow),
		c.UpstreamDatetimeField,
	)
}

// transientError marks a failure worth retrying (5xx, 429, transport or
// malformed-body errors). Anything not wrapped in transientError is permanent.
type transientError struct {
	err error
}

func (e transientError) Error() string {
	return e.err.Error()
}

// FetchPage executes one page request for window w with LIMIT/OFFSET applied.
// The returned error, if any, is always a *FetchError.
func (cl *Client) FetchPage(ctx context.Context, w stream.Window, columns []string, limit int, offset int) (*Page, error) {
	sql := BuildSQL(cl.resourceId, w, columns)
	reqUrl := fmt.Sprintf("%v/datastore_search_sql?sql=%v",
		cl.baseApi, url.QueryEscape(fmt.Sprintf("%v LIMIT %v OFFSET %v", sql, limit, offset)))

	var page *Page
	operation := func() error {
		p, err := cl.doRequest(ctx, reqUrl)
		if err != nil {
			if _, ok := err.(transientError); ok { // if the failure is worth retrying...
				return err
			}
			return backoff.Permanent(err)
		}
		page = p
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cl.backoffInitial
	bo.MaxInterval = cl.backoffMax
	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cl.maxAttempts-1)), ctx))
	if err != nil {
		retriable := false
		if _, ok := err.(transientError); ok { // if we exhausted the retries on transient failures...
			retriable = true
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			retriable = true // the upstream may recover; a later run can retry the window.
		}
		return nil, &FetchError{Window: w, Offset: offset, Retriable: retriable, Err: err}
	}
	return page, nil
}

// doRequest performs a single GET through the circuit breaker and decodes the
// CKAN envelope. Numeric JSON values are preserved as json.Number so the
// transform stage owns all coercion.
func (cl *Client) doRequest(ctx context.Context, reqUrl string) (*Page, error) {
	result, err := cl.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.HttpUserAgent)
		resp, err := cl.http.Do(req)
		if err != nil {
			return nil, transientError{err}
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, transientError{fmt.Errorf("upstream returned status %v", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("upstream returned status %v", resp.StatusCode)
		}
		var envelope struct {
			Success bool `json:"success"`
			Result  struct {
				Records []map[string]interface{} `json:"records"`
				Total   *int                     `json:"total"`
			} `json:"result"`
		}
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(&envelope); err != nil {
			return nil, transientError{errors.Wrap(err, "unable to decode upstream response")}
		}
		if !envelope.Success {
			return nil, errors.New("upstream reported an unsuccessful query")
		}
		p := &Page{Records: envelope.Result.Records}
		if envelope.Result.Total != nil { // if upstream chose to report a total count...
			p.Total = *envelope.Result.Total
			p.HasTotal = true
		}
		return p, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			cl.log.Warn("neso circuit breaker rejected the request: ", err)
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return result.(*Page), nil
}
