package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskbot/internal/logger"
	"taskbot/internal/manager"
)

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, baseURL, secret string) (string, error)
}

type Options struct {
	WebhookSecret string
	PublicBaseURL string
	// CronSecret, when set, must be sent as a bearer token to /api/cron/*.
	CronSecret string
}

type Server struct {
	bot      UpdateHandler
	tasks    *manager.TaskManager
	sender   manager.Sender
	webhooks WebhookRegistrar
	opts     Options
}

func New(bot UpdateHandler, tasks *manager.TaskManager, sender manager.Sender, webhooks WebhookRegistrar, opts Options) *Server {
	return &Server{
		bot:      bot,
		tasks:    tasks,
		sender:   sender,
		webhooks: webhooks,
		opts:     opts,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/telegram", s.telegramHandler)
		r.Get("/setup", s.setupHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Get("/cron/reminders", s.remindersHandler)
			r.Get("/cron/daily", s.dailyHandler)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) telegramHandler(w http.ResponseWriter, r *http.Request) {
	if !secretMatches(s.opts.WebhookSecret, r.URL.Query().Get("secret")) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false})
		return
	}
	defer r.Body.Close()

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
		return
	}

	// Telegram redelivers on anything but 200, so handler errors are only logged.
	if err := s.bot.HandleUpdate(r.Context(), update); err != nil {
		logger.Error(r.Context(), err, "update handling failed", "update", update.UpdateID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) remindersHandler(w http.ResponseWriter, r *http.Request) {
	ranAt := s.tasks.Now()

	sent, err := s.tasks.RunReminders(r.Context(), s.sender)
	if err != nil {
		logger.Error(r.Context(), err, "reminder run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"ranAt": ranAt.Format(time.RFC3339),
		"sent":  sent,
	})
}

func (s *Server) dailyHandler(w http.ResponseWriter, r *http.Request) {
	sent, err := s.tasks.RunDigest(r.Context(), s.sender)
	if err != nil {
		logger.Error(r.Context(), err, "daily digest failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sent": sent})
}

func (s *Server) setupHandler(w http.ResponseWriter, r *http.Request) {
	if s.webhooks == nil || s.opts.WebhookSecret == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "Missing TELEGRAM_BOT_TOKEN or TELEGRAM_WEBHOOK_SECRET",
		})
		return
	}

	base := s.opts.PublicBaseURL
	if base == "" {
		base = "https://" + r.Host
	}

	webhookURL, err := s.webhooks.SetWebhook(r.Context(), base, s.opts.WebhookSecret)
	if err != nil {
		logger.Error(r.Context(), err, "webhook setup failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": "could not register webhook"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "webhookUrl": webhookURL})
}

func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.CronSecret != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !secretMatches(s.opts.CronSecret, token) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// An empty expected secret never matches.
func secretMatches(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.Debug(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error(context.Background(), err, "could not write response")
	}
}
