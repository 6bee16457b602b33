package breach

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vaultec/vaultcore/internal/errs"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()
	// Known SHA-1 of "password".
	const want = "5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8"
	if got := HashPassword("password"); got != want {
		t.Fatalf("HashPassword = %q, want %q", got, want)
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithHTTPClient(srv.Client(), srv.URL)
}

func TestCheck_Breached(t *testing.T) {
	t.Parallel()
	hash := HashPassword("password")
	prefix, suffix := hash[:5], hash[5:]

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/range/"+prefix {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing User-Agent header")
		}
		fmt.Fprintf(w, "003D68EB55068C33ACE09247EE4C639306:5\r\n%s:42\r\nFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF:1\r\n", suffix)
	})

	res, err := c.Check(context.Background(), "password")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Breached || res.Count != 42 {
		t.Fatalf("got %+v, want breached with count 42", res)
	}
}

func TestCheck_SuffixMatchIsCaseAndSpaceInsensitive(t *testing.T) {
	t.Parallel()
	hash := HashPassword("password")
	suffix := hash[5:]

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// lowercase suffix with stray padding
		fmt.Fprintf(w, "  %s : 7 \n", strings.ToLower(suffix))
	})
	res, err := c.Check(context.Background(), "password")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Breached || res.Count != 7 {
		t.Fatalf("got %+v, want breached count 7", res)
	}
}

func TestCheck_NotBreached(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "003D68EB55068C33ACE09247EE4C639306:5\nAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:9\n")
	})
	res, err := c.Check(context.Background(), "definitely-not-in-the-list")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Breached || res.Count != 0 {
		t.Fatalf("got %+v, want clean", res)
	}
}

func TestCheck_ServerError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	res, err := c.Check(context.Background(), "password")
	if !errors.Is(err, errs.ErrOracleUnavailable) {
		t.Fatalf("want ErrOracleUnavailable, got %v", err)
	}
	if res.Breached || res.Count != 0 {
		t.Fatalf("safe default violated: %+v", res)
	}
}

func TestCheck_NetworkFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	c := NewClientWithHTTPClient(http.DefaultClient, url)
	res, err := c.Check(context.Background(), "password")
	if !errors.Is(err, errs.ErrOracleUnavailable) {
		t.Fatalf("want ErrOracleUnavailable, got %v", err)
	}
	if res.Breached || res.Count != 0 {
		t.Fatalf("safe default violated: %+v", res)
	}
}
