// Package web serves the browser chat front-end and its JSON API.
//
// Every request loads the conversation snapshot from the store, rebuilds a
// session around it, feeds it one utterance and saves the result. Requests
// for the same conversation are serialised; different conversations run
// concurrently.
//
//	@title			solace API
//	@version		1.0
//	@description	Text and voice chat with a supportive companion.
//	@BasePath		/
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/solace/docs"
	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/session"
	"github.com/nadzzz/solace/internal/speech"
	"github.com/nadzzz/solace/internal/store"
	"github.com/nadzzz/solace/internal/stt"
)

//go:embed static
var staticFiles embed.FS

// maxAudioBytes bounds uploaded recordings.
const maxAudioBytes = 25 << 20

// Options configures the web server. Recognizer and Speaker are optional:
// without a recognizer the audio endpoint answers 503, without a speaker
// replies are returned but not played on the server.
type Options struct {
	Port       int
	Session    session.Config
	Recognizer stt.Recognizer
	Speaker    speech.Speaker
	Observer   session.Observer
}

// Server is the web chat front-end.
type Server struct {
	port       int
	cfg        session.Config
	client     completion.Client
	store      store.Store
	recognizer stt.Recognizer
	speaker    speech.Speaker
	observer   session.Observer
	mu         sync.Mutex
	locks      map[string]*convLock
	server     *http.Server
}

// New creates a web server that keeps conversations in st.
func New(client completion.Client, st store.Store, opts Options) *Server {
	observer := opts.Observer
	if observer == nil {
		observer = session.NewSlogObserver(nil)
	}
	return &Server{
		port:       opts.Port,
		cfg:        opts.Session,
		client:     client,
		store:      st,
		recognizer: opts.Recognizer,
		speaker:    opts.Speaker,
		observer:   observer,
		locks:      make(map[string]*convLock),
	}
}

// Handler returns the routes of the web front-end.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /", http.FileServerFS(static))

	mux.HandleFunc("POST /api/conversations", s.handleCreate)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.handleMessage)
	mux.HandleFunc("POST /api/conversations/{id}/audio", s.handleAudio)
	mux.HandleFunc("POST /api/conversations/{id}/regenerate", s.handleRegenerate)

	// Swagger UI serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return logRequests(mux)
}

// ListenAndServe starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("web server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		slog.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web listen: %w", err)
	}
	return nil
}

// convLock is a per-conversation mutex shared by the requests holding or
// waiting for it.
type convLock struct {
	mu   sync.Mutex
	refs int
}

// lock serialises requests for one conversation. The entry is dropped when
// its last holder unlocks, so only conversations with requests in flight
// keep one.
func (s *Server) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &convLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// lockCount reports how many conversations have requests in flight.
func (s *Server) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
