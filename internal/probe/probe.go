// Package probe resolves the origin machine identity recorded on Folder
// entities: the local username and the public IP.
package probe

import (
	"context"
	"os"
	"os/user"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AdrienPensart/critical/internal/errs"
)

// DefaultEndpoint answers HEAD requests with an X-Client-IP header.
const DefaultEndpoint = "https://www.wikipedia.org"

// Timeout bounds the probe; the IP is required for Folder identity, so a
// hanging probe must not hang the scan forever.
const Timeout = 20 * time.Second

const ipHeader = "X-Client-IP"

// PublicIP issues a HEAD request to endpoint and reads the client IP echoed
// back in the response headers. An empty endpoint uses DefaultEndpoint.
func PublicIP(ctx context.Context, endpoint string) (string, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := resty.New().SetTimeout(Timeout)
	resp, err := client.R().SetContext(ctx).Head(endpoint)
	if err != nil {
		return "", err
	}
	ip := resp.Header().Get(ipHeader)
	if ip == "" {
		return "", errs.ErrNoPublicIP
	}
	return ip, nil
}

// Username returns the local account name, falling back to $USER.
func Username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
