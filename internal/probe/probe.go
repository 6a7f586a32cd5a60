// Package probe checks a running development server the way a browser
// would: a CORS preflight, the page itself and the assets it references.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"

	"golang.org/x/net/html"

	"github.com/f4ah6o/corsserve-go/internal/config"
)

// DefaultUserAgent identifies probe requests in the server's request log.
const DefaultUserAgent = "corsserve-probe/1.0"

// DefaultOrigin is sent as the Origin header of preflight requests.
const DefaultOrigin = "http://localhost:3000"

// maxPageSize bounds how much of an HTML page is parsed for assets.
const maxPageSize = 4 << 20

// Prober sends requests to a server and compares its CORS headers with the
// expected values.
type Prober struct {
	client    *http.Client
	userAgent string
	origin    string
	expect    config.CORS
}

// New creates a Prober. A nil client means http.DefaultClient.
func New(client *http.Client, userAgent, origin string, expect config.CORS) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Prober{
		client:    client,
		userAgent: userAgent,
		origin:    origin,
		expect:    expect,
	}
}

// Probe checks target. The returned error is non-nil only when target is
// not a valid URL or the server cannot be reached at all; every other
// failure is recorded in the Report.
func (p *Prober) Probe(ctx context.Context, target string) (*Report, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", target)
	}

	report := &Report{Target: target}

	report.Preflight = p.preflight(ctx, u.String())
	if report.Preflight.Err != "" {
		return nil, fmt.Errorf("failed to reach %s: %s", target, report.Preflight.Err)
	}

	page, resp, body := p.fetch(ctx, u.String(), true)
	report.Page = page
	if resp == nil {
		return report, nil
	}
	report.TLS = resp.TLS != nil

	if !isHTML(resp.Header.Get("Content-Type")) {
		return report, nil
	}

	doc, err := html.Parse(body)
	if err != nil {
		log.Printf("Failed to parse %s: %v. Skipping assets.", target, err)
		return report, nil
	}

	for _, asset := range ExtractAssets(doc, resp.Request.URL) {
		check, _, _ := p.fetch(ctx, asset, false)
		report.Assets = append(report.Assets, check)
	}

	return report, nil
}

func (p *Prober) preflight(ctx context.Context, target string) Check {
	check := Check{URL: target, Method: http.MethodOptions}

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, target, nil)
	if err != nil {
		check.Err = err.Error()
		return check
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Origin", p.origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := p.client.Do(req)
	if err != nil {
		check.Err = err.Error()
		return check
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	check.Status = resp.StatusCode
	check.Missing = p.missingHeaders(resp.Header)
	return check
}

// fetch GETs target. When keepBody is set the response and a reader over at
// most maxPageSize bytes of its body are returned alongside the check.
func (p *Prober) fetch(ctx context.Context, target string, keepBody bool) (Check, *http.Response, io.Reader) {
	check := Check{URL: target, Method: http.MethodGet}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		check.Err = err.Error()
		return check, nil, nil
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Origin", p.origin)

	resp, err := p.client.Do(req)
	if err != nil {
		check.Err = err.Error()
		return check, nil, nil
	}
	defer resp.Body.Close()

	check.Status = resp.StatusCode
	check.Missing = p.missingHeaders(resp.Header)

	if !keepBody {
		_, _ = io.Copy(io.Discard, resp.Body)
		return check, resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		check.Err = err.Error()
		return check, nil, nil
	}
	return check, resp, bytes.NewReader(body)
}

func (p *Prober) missingHeaders(h http.Header) []string {
	var missing []string
	want := []struct{ name, value string }{
		{"Access-Control-Allow-Origin", p.expect.AllowOrigin},
		{"Access-Control-Allow-Methods", p.expect.AllowMethods},
		{"Access-Control-Allow-Headers", p.expect.AllowHeaders},
	}
	for _, w := range want {
		if h.Get(w.name) != w.value {
			missing = append(missing, w.name)
		}
	}
	return missing
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}
