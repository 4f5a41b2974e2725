package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AdrienPensart/critical/internal/errs"
)

func TestPublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.Header().Set("X-Client-IP", "1.2.3.4")
	}))
	defer srv.Close()

	ip, err := PublicIP(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("PublicIP: %v", err)
	}
	if ip != "1.2.3.4" {
		t.Errorf("ip = %q", ip)
	}
}

func TestPublicIPMissingHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := PublicIP(context.Background(), srv.URL)
	if !errors.Is(err, errs.ErrNoPublicIP) {
		t.Fatalf("err = %v, want ErrNoPublicIP", err)
	}
}

func TestUsername(t *testing.T) {
	if Username() == "" {
		t.Skip("no resolvable username in this environment")
	}
}
