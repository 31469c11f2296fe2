/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/robfig/cron/v3"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/export"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/version"
)

// Config holds server configuration.
type Config struct {
	Addr           string
	Secret         string
	Quota          int // designs per owner, zero for unlimited
	AllowedOrigins []string
	// IssueTokens enables POST /api/auth/token for local development.
	IssueTokens   bool
	TokenTTL      time.Duration
	KeepRevisions int
	PruneSchedule string // cron spec; empty disables pruning
	MaxBodyBytes  int64
}

// DefaultConfig returns a development configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		Quota:          0,
		AllowedOrigins: []string{"https://*", "http://*"},
		TokenTTL:       time.Hour,
		KeepRevisions:  20,
		PruneSchedule:  "@every 1h",
		MaxBodyBytes:   8 << 20,
	}
}

// Server exposes a DesignStore over HTTP.
type Server struct {
	store  storage.DesignStore
	cfg    Config
	secret []byte
	log    *slog.Logger
	cron   *cron.Cron
}

// NewServer wires a server around store. An empty secret is replaced by an
// insecure development value and logged.
func NewServer(store storage.DesignStore, cfg Config, l *slog.Logger) *Server {
	if l == nil {
		l = slog.Default()
	}
	if cfg.Secret == "" {
		cfg.Secret = "dev-secret-change-me"
		l.Warn("MKS_JWT_SECRET not set; using insecure dev secret")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	return &Server{store: store, cfg: cfg, secret: []byte(cfg.Secret), log: l}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, version.String())
	})

	r.Route("/api", func(r chi.Router) {
		if s.cfg.IssueTokens {
			r.Post("/auth/token", s.handleIssueToken)
		}
		r.Group(func(r chi.Router) {
			r.Use(s.authJWT)
			r.Route("/designs", func(r chi.Router) {
				r.Get("/", s.handleList)
				r.Post("/", s.handleCreate)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGet)
					r.Put("/", s.handleUpdate)
					r.Delete("/", s.handleDelete)
					r.Get("/revisions", s.handleRevisions)
					r.Get("/preview.png", s.handlePreview)
					r.Get("/export.{format}", s.handleExport)
				})
			})
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(interface{ DB() *sql.DB }); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.DB().PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
	}
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	ttl := s.cfg.TokenTTL
	if req.TTLSeconds > 0 && time.Duration(req.TTLSeconds)*time.Second < 24*time.Hour {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	tok, exp, err := SignToken(s.secret, req.Subject, ttl)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	render.JSON(w, r, map[string]any{"token": tok, "expires_at": exp.UTC().Format(time.RFC3339)})
}

func (s *Server) adapter(r *http.Request) *storage.StoreAdapter {
	return storage.NewAdapter(s.store, Owner(r.Context()),
		storage.WithQuota(s.cfg.Quota),
		storage.WithLogger(s.log.With(slog.String("owner", Owner(r.Context())))))
}

// designRequest is the body of create and update calls. CanvasData is
// validated against the canvas_data schema before decoding.
type designRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CanvasData  json.RawMessage `json:"canvas_data"`
	PreviewURL  string          `json:"preview_url"`
	IsPublic    bool            `json:"is_public"`
}

func (s *Server) decodeSave(w http.ResponseWriter, r *http.Request) (storage.SaveOptions, error) {
	var req designRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return storage.SaveOptions{}, domain.Validationf("request body exceeds %d bytes", tooBig.Limit)
		}
		return storage.SaveOptions{}, domain.Validationf("malformed request: %v", err)
	}
	data, err := storage.DecodeCanvasData(req.CanvasData)
	if err != nil {
		return storage.SaveOptions{}, err
	}
	return storage.SaveOptions{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		PreviewURL:  req.PreviewURL,
		CanvasData:  data,
	}, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.adapter(r).List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []storage.Summary{}
	}
	render.JSON(w, r, list)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	opts, err := s.decodeSave(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.adapter(r).Save(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, d)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := s.adapter(r).Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, d)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	opts, err := s.decodeSave(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.adapter(r).Update(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, d)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.adapter(r).Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevisions(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.store.(storage.RevisionStore)
	if !ok {
		renderError(w, r, http.StatusNotImplemented, "revisions are not kept by this backend")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	revs, err := rs.Revisions(r.Context(), Owner(r.Context()), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, r, domain.PersistenceError("list revisions", err))
		return
	}
	if revs == nil {
		revs = []storage.Revision{}
	}
	render.JSON(w, r, revs)
}

type previewCache interface {
	GetOrCreatePreview(ctx context.Context, designID string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	d, err := s.adapter(r).Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pw, ph := dimension(r, "w", 320), dimension(r, "h", 320)
	gen := func(context.Context) ([]byte, error) { return export.Thumbnail(d.CanvasData, pw, ph) }
	var png []byte
	if c, ok := s.store.(previewCache); ok {
		png, err = c.GetOrCreatePreview(r.Context(), d.ID, pw, ph, gen)
	} else {
		png, err = gen(r.Context())
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=60")
	_, _ = w.Write(png)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.adapter(r).Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	scale, _ := strconv.ParseFloat(r.URL.Query().Get("scale"), 64)
	guides := r.URL.Query().Get("guides") == "1"
	var buf bytes.Buffer
	if err := export.Write(&buf, f, d.CanvasData, scale, guides, d.Title); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[f])
	_, _ = w.Write(buf.Bytes())
}

var contentTypes = map[export.Format]string{
	export.FormatPDF: "application/pdf",
	export.FormatPNG: "image/png",
	export.FormatSVG: "image/svg+xml",
}

func dimension(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 2048)
}

// Run serves until ctx is cancelled, then shuts down gracefully. Revision
// pruning runs on the configured schedule while the server is up.
func (s *Server) Run(ctx context.Context) error {
	if err := s.StartPrune(ctx); err != nil {
		return err
	}
	defer s.StopPrune()
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
