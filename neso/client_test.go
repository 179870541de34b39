package neso

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/stream"
)

var testWindow = stream.NewWindow(
	time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
)

func newTestClient(log logger.Logger, baseApi string) *Client {
	cl := NewClient(log, baseApi, "test-resource")
	cl.maxAttempts = 3
	cl.backoffInitial = time.Millisecond
	cl.backoffMax = 2 * time.Millisecond
	return cl
}

func TestBuildSQL(t *testing.T) {
	// Test 1 - select star with half-open bounds and ascending order.
	sql := BuildSQL("res-1", testWindow, nil)
	for _, want := range []string{
		`SELECT * FROM "res-1"`,
		`"DATETIME" >= '2024-01-01T00:00:00Z'`,
		`"DATETIME" < '2024-01-02T00:00:00Z'`,
		`ORDER BY "DATETIME" ASC`,
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("Test 1, SQL %q is missing %q", sql, want)
		}
	}

	// Test 2 - explicit columns are quoted unless already quoted.
	sql = BuildSQL("res-1", testWindow, []string{"DATETIME", `"GAS"`})
	if !strings.Contains(sql, `SELECT "DATETIME","GAS" FROM`) {
		t.Fatal("Test 2, unexpected column list: ", sql)
	}
}

func TestFetchPage(t *testing.T) {
	log := logger.NewLogger("gridmix", "info", false)

	// Test 1 - a successful page decodes records and the total count.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("sql"), "LIMIT 2 OFFSET 4") {
			t.Error("Test 1, request SQL is missing LIMIT/OFFSET: ", r.URL.Query().Get("sql"))
		}
		fmt.Fprint(w, `{"success":true,"result":{"total":10,"records":[
			{"DATETIME":"2024-01-01T00:00:00","GAS":"100.5"},
			{"DATETIME":"2024-01-01T00:30:00","GAS":""}]}}`)
	}))
	defer srv.Close()
	cl := newTestClient(log, srv.URL)
	page, err := cl.FetchPage(context.Background(), testWindow, nil, 2, 4)
	if err != nil {
		t.Fatal("Test 1, unexpected error: ", err)
	}
	if len(page.Records) != 2 || !page.HasTotal || page.Total != 10 {
		t.Fatal("Test 1, unexpected page: ", page)
	}
	if page.Records[0]["GAS"] != "100.5" {
		t.Fatal("Test 1, unexpected record value: ", page.Records[0])
	}

	// Test 2 - a missing total count is tolerated.
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"result":{"records":[]}}`)
	}))
	defer srv2.Close()
	cl = newTestClient(log, srv2.URL)
	page, err = cl.FetchPage(context.Background(), testWindow, nil, 2, 0)
	if err != nil {
		t.Fatal("Test 2, unexpected error: ", err)
	}
	if page.HasTotal || len(page.Records) != 0 {
		t.Fatal("Test 2, unexpected page: ", page)
	}
}

func TestFetchPageRetries(t *testing.T) {
	log := logger.NewLogger("gridmix", "info", false)

	// Test 1 - transient failures below the attempt limit still succeed.
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) <= 2 { // fail the first two attempts...
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"success":true,"result":{"records":[{"DATETIME":"2024-01-01T00:00:00"}]}}`)
	}))
	defer srv.Close()
	cl := newTestClient(log, srv.URL)
	page, err := cl.FetchPage(context.Background(), testWindow, nil, 5, 0)
	if err != nil {
		t.Fatal("Test 1, unexpected error: ", err)
	}
	if len(page.Records) != 1 || atomic.LoadInt64(&calls) != 3 {
		t.Fatal("Test 1, expected success on the third attempt, calls=", calls)
	}

	// Test 2 - exhausting the attempts surfaces a retriable FetchError naming the window.
	atomic.StoreInt64(&calls, 0)
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv2.Close()
	cl = newTestClient(log, srv2.URL)
	_, err = cl.FetchPage(context.Background(), testWindow, nil, 5, 40)
	if err == nil {
		t.Fatal("Test 2, expected an error after exhausting retries")
	}
	fe, ok := err.(*FetchError)
	if !ok {
		t.Fatalf("Test 2, expected a *FetchError, got %T", err)
	}
	if !fe.Retriable || fe.Offset != 40 || fe.Window != testWindow {
		t.Fatal("Test 2, unexpected FetchError fields: ", fe)
	}
	if atomic.LoadInt64(&calls) != int64(cl.maxAttempts) {
		t.Fatal("Test 2, expected all attempts to be used, calls=", calls)
	}

	// Test 3 - a 4xx fails immediately without retry and is non-retriable.
	atomic.StoreInt64(&calls, 0)
	srv3 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv3.Close()
	cl = newTestClient(log, srv3.URL)
	_, err = cl.FetchPage(context.Background(), testWindow, nil, 5, 0)
	fe, ok = err.(*FetchError)
	if !ok || fe.Retriable {
		t.Fatal("Test 3, expected a non-retriable FetchError, got ", err)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatal("Test 3, expected a single attempt, calls=", calls)
	}
}
