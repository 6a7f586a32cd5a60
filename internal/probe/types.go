package probe

// Check is the outcome of a single request made by the prober.
type Check struct {
	// URL is the absolute URL that was requested.
	URL string `json:"url"`
	// Method is the HTTP method used.
	Method string `json:"method"`
	// Status is the response status code, 0 if no response arrived.
	Status int `json:"status"`
	// Missing lists CORS headers that were absent or did not carry the expected value.
	Missing []string `json:"missing_headers,omitempty"`
	// Err is the transport error, if any.
	Err string `json:"error,omitempty"`
}

// OK reports whether the request succeeded with a 2xx status and every
// expected CORS header.
func (c Check) OK() bool {
	return c.Err == "" && c.Status >= 200 && c.Status < 300 && len(c.Missing) == 0
}

// Report gathers every check made against one page.
type Report struct {
	// Target is the URL passed to Probe.
	Target string `json:"target"`
	// TLS is true when the page was served over TLS.
	TLS bool `json:"tls"`
	// Preflight is the OPTIONS request a browser sends before a cross-origin call.
	Preflight Check `json:"preflight"`
	// Page is the GET of the target itself.
	Page Check `json:"page"`
	// Assets are same-origin scripts, stylesheets and images referenced by an HTML page.
	Assets []Check `json:"assets,omitempty"`
}

// OK reports whether every check in the report passed.
func (r *Report) OK() bool {
	if !r.Preflight.OK() || !r.Page.OK() {
		return false
	}
	for _, a := range r.Assets {
		if !a.OK() {
			return false
		}
	}
	return true
}
