// Package server serves a directory over HTTP or HTTPS with permissive CORS
// headers for local front-end development.
package server

import (
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/f4ah6o/corsserve-go/internal/config"
)

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCORS overrides the header values appended to every response.
func WithCORS(cors config.CORS) HandlerOption {
	return func(h *Handler) {
		h.cors = cors
	}
}

// WithRequestLog writes one line per request to logger.
func WithRequestLog(logger *log.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// Handler serves files from a directory. Requests are dispatched by method;
// every response, including errors, passes through finalizeHeaders before
// its status line is written.
type Handler struct {
	root    http.Dir
	files   http.Handler
	cors    config.CORS
	logger  *log.Logger
	methods map[string]http.HandlerFunc
}

// NewHandler returns a Handler serving dir.
func NewHandler(dir string, opts ...HandlerOption) *Handler {
	h := &Handler{
		root:  http.Dir(dir),
		files: http.FileServer(http.Dir(dir)),
		cors:  config.Default().CORS,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.methods = map[string]http.HandlerFunc{
		http.MethodGet:     h.serveFile,
		http.MethodHead:    h.serveFile,
		http.MethodOptions: h.serveOptions,
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := &headerWriter{ResponseWriter: w, finalize: h.finalizeHeaders}

	if h.logger != nil {
		defer func() {
			h.logger.Printf("%s \"%s %s %s\" %d", r.RemoteAddr, r.Method, r.URL.RequestURI(), r.Proto, rw.status)
		}()
	}

	serve, ok := h.methods[r.Method]
	if !ok {
		http.Error(rw, "Unsupported method ("+r.Method+")", http.StatusNotImplemented)
		return
	}
	serve(rw, r)

	// a handler that wrote nothing still gets an implicit 200
	if rw.status == 0 {
		rw.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) {
	// http.FileServer redirects ".../index.html" to ".../"; serve the file
	// under its own name instead.
	name := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(name, "/index.html") && h.serveExact(w, r, name) {
		return
	}
	h.files.ServeHTTP(w, r)
}

// serveExact sends the regular file name and reports whether it did.
func (h *Handler) serveExact(w http.ResponseWriter, r *http.Request, name string) bool {
	f, err := h.root.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

// serveOptions answers preflight requests with a bare 200.
func (h *Handler) serveOptions(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) finalizeHeaders(header http.Header) {
	header.Set("Access-Control-Allow-Origin", h.cors.AllowOrigin)
	header.Set("Access-Control-Allow-Methods", h.cors.AllowMethods)
	header.Set("Access-Control-Allow-Headers", h.cors.AllowHeaders)
}

// headerWriter calls finalize exactly once, right before the final status
// line goes out.
type headerWriter struct {
	http.ResponseWriter
	finalize func(http.Header)
	status   int
}

func (w *headerWriter) WriteHeader(code int) {
	if w.status == 0 && code >= http.StatusOK {
		w.status = code
		w.finalize(w.Header())
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// ReadFrom keeps the underlying writer's sendfile path for large files.
func (w *headerWriter) ReadFrom(src io.Reader) (int64, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		return rf.ReadFrom(src)
	}
	return io.Copy(writerOnly{w.ResponseWriter}, src)
}

// writerOnly hides any ReadFrom method so io.Copy does not recurse.
type writerOnly struct {
	io.Writer
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *headerWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
