package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/f4ah6o/corsserve-go/internal/config"
	"github.com/f4ah6o/corsserve-go/internal/server"
)

const indexHTML = `<!doctype html>
<html>
<head>
  <link rel="stylesheet" href="style.css">
  <link rel="alternate" hreflang="ja" href="/ja/">
  <script src="config-loader.js"></script>
  <script src="https://cdn.socket.io/4.7.2/socket.io.min.js"></script>
</head>
<body>
  <img src="/missing.png">
  <script src="app.js"></script>
</body>
</html>`

func newSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":       indexHTML,
		"style.css":        "body { margin: 0; }",
		"config-loader.js": "fetch('config.json');",
		"app.js":           "const BACKEND_URL = 'https://localhost:3000';",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestExtractAssets(t *testing.T) {
	base, err := url.Parse("https://localhost:5500/app/index.html")
	require.NoError(t, err)

	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "relative and absolute paths",
			html: `<script src="main.js"></script><img src="/img/logo.png">`,
			want: []string{"https://localhost:5500/app/main.js", "https://localhost:5500/img/logo.png"},
		},
		{
			name: "cross origin skipped",
			html: `<script src="https://cdn.example.com/lib.js"></script><script src="http://localhost:5500/x.js"></script>`,
			want: nil,
		},
		{
			name: "link rels",
			html: `<link rel="stylesheet" href="a.css"><link rel="canonical" href="/c"><link rel="shortcut icon" href="/favicon.ico">`,
			want: []string{"https://localhost:5500/app/a.css", "https://localhost:5500/favicon.ico"},
		},
		{
			name: "duplicates fragments and data urls",
			html: `<script src="a.js#x"></script><script src="a.js"></script><img src="data:image/png;base64,AAAA"><script></script>`,
			want: []string{"https://localhost:5500/app/a.js"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := html.Parse(strings.NewReader(tt.html))
			require.NoError(t, err)

			got := ExtractAssets(doc, base)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, ExtractAssets(nil, base))
}

func TestProbeCORSServer(t *testing.T) {
	ts := httptest.NewServer(server.NewHandler(newSite(t)))
	defer ts.Close()

	p := New(ts.Client(), "", "", config.Default().CORS)
	report, err := p.Probe(context.Background(), ts.URL+"/")
	require.NoError(t, err)

	assert.False(t, report.TLS)
	assert.True(t, report.Preflight.OK())
	assert.Equal(t, http.MethodOptions, report.Preflight.Method)
	assert.True(t, report.Page.OK())

	require.Len(t, report.Assets, 4)
	byURL := make(map[string]Check)
	for _, a := range report.Assets {
		byURL[a.URL] = a
	}
	assert.True(t, byURL[ts.URL+"/style.css"].OK())
	assert.True(t, byURL[ts.URL+"/config-loader.js"].OK())
	assert.True(t, byURL[ts.URL+"/app.js"].OK())

	missing := byURL[ts.URL+"/missing.png"]
	assert.Equal(t, http.StatusNotFound, missing.Status)
	assert.Empty(t, missing.Missing)
	assert.False(t, missing.OK())

	assert.False(t, report.OK())
}

func TestProbePlainFileServer(t *testing.T) {
	ts := httptest.NewServer(http.FileServer(http.Dir(newSite(t))))
	defer ts.Close()

	p := New(ts.Client(), "", "", config.Default().CORS)
	report, err := p.Probe(context.Background(), ts.URL+"/style.css")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"Access-Control-Allow-Origin",
		"Access-Control-Allow-Methods",
		"Access-Control-Allow-Headers",
	}, report.Preflight.Missing)
	assert.False(t, report.Page.OK())
	assert.Empty(t, report.Assets)
	assert.False(t, report.OK())
}

func TestProbeTLS(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{}`), 0o644))

	ts := httptest.NewTLSServer(server.NewHandler(dir))
	defer ts.Close()

	p := New(ts.Client(), "", "", config.Default().CORS)
	report, err := p.Probe(context.Background(), ts.URL+"/config.json")
	require.NoError(t, err)

	assert.True(t, report.TLS)
	assert.True(t, report.OK())
}

func TestProbeErrors(t *testing.T) {
	p := New(nil, "", "", config.Default().CORS)

	_, err := p.Probe(context.Background(), "ftp://localhost/")
	assert.Error(t, err)

	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	_, err = p.Probe(context.Background(), addr+"/")
	assert.Error(t, err)
}
