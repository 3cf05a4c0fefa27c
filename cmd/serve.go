package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/internal/resilience"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the research API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initShell(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIRouter(env),
		}

		if cfg.Cache.SweepIntervalMin > 0 {
			go func() {
				t := time.NewTicker(time.Duration(cfg.Cache.SweepIntervalMin) * time.Minute)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						if n := env.Caches.SweepAll(); n > 0 {
							zap.L().Debug("swept expired cache entries", zap.Int("removed", n))
						}
					}
				}
			}()
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newAPIRouter builds the HTTP surface. Admin-role enforcement happens in
// the surrounding application; these endpoints assume an authorized caller.
func newAPIRouter(env *shellEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", env.handleSearch)
		r.Post("/verify", env.handleVerify)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/caches", env.handleCacheStats)
			r.Delete("/caches", env.handleCacheClearAll)
			r.Delete("/caches/{name}", env.handleCacheClear)
			r.Get("/ratelimit/{user}", env.handleRateLimitStatus)
			r.Post("/ratelimit/{user}/reset", env.handleRateLimitReset)
			r.Get("/cost/predict", env.handleCostPredict)
			r.Get("/cost/duplicates", env.handleCostDuplicates)
		})
	})

	return r
}

type searchRequest struct {
	Text          string   `json:"text"`
	Jurisdiction  string   `json:"jurisdiction,omitempty"`
	DocumentTypes []string `json:"documentTypes,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	UserID        string   `json:"userId"`
	SessionID     string   `json:"sessionId,omitempty"`
	StartDate     string   `json:"startDate,omitempty"`
	EndDate       string   `json:"endDate,omitempty"`
}

func (e *shellEnv) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	mode, err := model.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := model.Query{
		Text:          req.Text,
		Jurisdiction:  req.Jurisdiction,
		DocumentTypes: req.DocumentTypes,
		Mode:          mode,
		UserID:        req.UserID,
		SessionID:     req.SessionID,
	}
	if q.StartDate, err = parseDateFlag(req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.EndDate, err = parseDateFlag(req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := e.Aggregator.Execute(r.Context(), q)
	if err != nil {
		var rle *resilience.RateLimitError
		if errors.As(err, &rle) {
			w.Header().Set("Retry-After", retryAfterSeconds(rle.RetryAfter))
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		zap.L().Error("search failed", zap.String("query", req.Text), zap.Error(err))
		writeError(w, http.StatusBadGateway, "all sources failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// retryAfterSeconds renders a wait as whole seconds, rounding up so a
// client never retries before the window rolls.
func retryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

func (e *shellEnv) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Citation string `json:"citation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Citation == "" {
		writeError(w, http.StatusBadRequest, "citation is required")
		return
	}

	writeJSON(w, http.StatusOK, e.Verifier.Verify(r.Context(), req.Citation))
}

func (e *shellEnv) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":   e.Caches.Stats(),
		"configs": e.Caches.Configs(),
	})
}

func (e *shellEnv) handleCacheClearAll(w http.ResponseWriter, r *http.Request) {
	e.Caches.ClearAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (e *shellEnv) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !e.Caches.Clear(name) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no cache named %q", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "cache": name})
}

func (e *shellEnv) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	writeJSON(w, http.StatusOK, map[string]any{
		"user": user,
		"remaining": map[string]int{
			string(model.ModeFast): e.Limiter.Remaining(user, model.ModeFast),
			string(model.ModeDeep): e.Limiter.Remaining(user, model.ModeDeep),
		},
	})
}

func (e *shellEnv) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	e.Limiter.Reset(user)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "user": user})
}

func (e *shellEnv) handleCostPredict(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	mode, err := model.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prediction":     e.Predictor.Predict(query, mode),
		"comparison":     e.Predictor.Compare(query),
		"recommendation": e.Predictor.RecommendMode(query, mode),
	})
}

func (e *shellEnv) handleCostDuplicates(w http.ResponseWriter, r *http.Request) {
	groups := e.Detector.Report()
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"window": e.Detector.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
