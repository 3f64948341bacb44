// Package web serves the local management UI: rule editing, reply logs,
// engine settings, and monitor control.
package web

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/replyforge/replyforge/internal/config"
	"github.com/replyforge/replyforge/internal/email"
	"github.com/replyforge/replyforge/internal/engine"
	"github.com/replyforge/replyforge/internal/history"
	"github.com/replyforge/replyforge/internal/mailbox"
	"github.com/replyforge/replyforge/internal/responder"
	"github.com/replyforge/replyforge/internal/rules"
)

//go:embed templates/*
var templatesFS embed.FS

type Server struct {
	config     *config.Config
	configPath string
	rules      *rules.Store
	history    *history.Store
	engine     *engine.Engine
	templates  map[string]*template.Template
	httpServer *http.Server
	port       int
	csrfKey    []byte
	jobs       *JobManager
}

func NewServer(port int, cfg *config.Config, configPath string, ruleStore *rules.Store, historyStore *history.Store) (*Server, error) {
	csrfKey := make([]byte, 32)
	if _, err := rand.Read(csrfKey); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}

	s := &Server{
		config:     cfg,
		configPath: configPath,
		rules:      ruleStore,
		history:    historyStore,
		engine:     engineFromConfig(cfg),
		port:       port,
		csrfKey:    csrfKey,
		jobs:       NewJobManager(),
	}

	tmpl, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tmpl
	return s, nil
}

func engineFromConfig(cfg *config.Config) *engine.Engine {
	return engine.New(engine.Options{
		Language:  cfg.Engine.Language,
		Threshold: cfg.Engine.Threshold,
		Mode:      engine.Mode(cfg.Engine.Mode),
		Fallback:  cfg.Engine.Fallback,
		Signature: cfg.Engine.Signature,
	})
}

// parseTemplates builds one template set per page so each page's "content"
// block stays independent.
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006 3:04 PM")
		},
		"pct": func(score float64) string {
			return fmt.Sprintf("%.0f%%", score*100)
		},
	}

	layout, err := templatesFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout template: %w", err)
	}

	templates := make(map[string]*template.Template)
	err = fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == "templates/layout.html" || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := path[len("templates/"):]
		pageTmpl := template.New(name).Funcs(funcs)
		if _, err := pageTmpl.Parse(string(layout)); err != nil {
			return fmt.Errorf("failed to parse layout for %s: %w", name, err)
		}
		if _, err := pageTmpl.Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = pageTmpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (s *Server) Start() error {
	router := s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	fmt.Printf("ReplyForge web UI at http://localhost:%d\n", s.port)
	fmt.Println("Press Ctrl+C to stop")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.jobs.StopActive()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)

	csrfMiddleware := csrf.Protect(
		s.csrfKey,
		csrf.Secure(false), // localhost HTTP
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins([]string{"localhost", "127.0.0.1", fmt.Sprintf("localhost:%d", s.port), fmt.Sprintf("127.0.0.1:%d", s.port)}),
	)
	r.Use(csrfMiddleware)

	r.Get("/", s.handleDashboard)
	r.Get("/rules", s.handleRules)
	r.Post("/rules", s.handleRuleAdd)
	r.Post("/rules/{ruleID}/update", s.handleRuleUpdate)
	r.Post("/rules/{ruleID}/deactivate", s.handleRuleDeactivate)
	r.Get("/logs", s.handleLogs)
	r.Get("/settings", s.handleSettings)
	r.Post("/settings", s.handleSettingsSave)
	r.Get("/test", s.handleTest)
	r.Post("/test", s.handleTest)
	r.Post("/monitor/start", s.handleMonitorStart)
	r.Post("/monitor/stop", s.handleMonitorStop)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleAPIStats)
		r.Get("/monitor", s.handleAPIMonitor)
		r.Get("/rank", s.handleAPIRank)
	})

	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; "+
				"frame-ancestors 'none'; form-action 'self'; base-uri 'self'")
		// Rule texts and logs may contain customer mail content.
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")
		next.ServeHTTP(w, r)
	})
}

// Page handlers

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, _ := s.history.GetStats()
	recent, _ := s.history.Recent(10)
	ruleList, _ := s.rules.List()

	var job map[string]interface{}
	if active := s.jobs.Active(); active != nil {
		job = active.Snapshot()
	}

	s.render(w, r, "dashboard.html", map[string]interface{}{
		"Title":     "Dashboard",
		"Stats":     stats,
		"Recent":    recent,
		"RuleCount": len(ruleList),
		"Job":       job,
		"Engine":    s.config.Engine,
		"Error":     r.URL.Query().Get("error"),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	ruleList, err := s.rules.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "rules.html", map[string]interface{}{
		"Title": "Rules",
		"Rules": ruleList,
		"Error": r.URL.Query().Get("error"),
	})
}

func (s *Server) handleRuleAdd(w http.ResponseWriter, r *http.Request) {
	keyword := r.FormValue("keyword")
	response := r.FormValue("response")

	if _, err := s.rules.Add(keyword, response); err != nil {
		http.Redirect(w, r, "/rules?error="+template.URLQueryEscaper(err.Error()), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/rules", http.StatusFound)
}

func (s *Server) handleRuleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}

	keyword := r.FormValue("keyword")
	response := r.FormValue("response")
	active := r.FormValue("active") == "on"

	if err := s.rules.Update(id, keyword, response, active); err != nil {
		http.Redirect(w, r, "/rules?error="+template.URLQueryEscaper(err.Error()), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/rules", http.StatusFound)
}

func (s *Server) handleRuleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}

	rule, err := s.rules.GetByID(id)
	if err != nil || rule == nil {
		http.Redirect(w, r, "/rules?error=rule+not+found", http.StatusFound)
		return
	}
	if err := s.rules.Deactivate(rule.Keyword); err != nil {
		http.Redirect(w, r, "/rules?error="+template.URLQueryEscaper(err.Error()), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/rules", http.StatusFound)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.Recent(200)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "logs.html", map[string]interface{}{
		"Title":   "Reply Log",
		"Entries": entries,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "settings.html", map[string]interface{}{
		"Title":  "Settings",
		"Config": s.config,
	})
}

func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	cfg := *s.config
	cfg.Engine.Language = strings.TrimSpace(r.FormValue("language"))
	cfg.Engine.Mode = r.FormValue("mode")
	cfg.Engine.Fallback = r.FormValue("fallback")
	cfg.Engine.Signature = r.FormValue("signature")
	if threshold, err := strconv.ParseFloat(r.FormValue("threshold"), 64); err == nil {
		cfg.Engine.Threshold = threshold
	}
	if interval, err := strconv.Atoi(r.FormValue("interval_minutes")); err == nil && interval > 0 {
		cfg.Options.IntervalMinutes = interval
	}

	if err := cfg.ValidateEngine(); err != nil {
		s.render(w, r, "settings.html", map[string]interface{}{
			"Title":  "Settings",
			"Config": &cfg,
			"Error":  err.Error(),
		})
		return
	}

	if err := config.Save(s.configPath, &cfg); err != nil {
		s.render(w, r, "settings.html", map[string]interface{}{
			"Title":  "Settings",
			"Config": &cfg,
			"Error":  "Failed to save configuration: " + err.Error(),
		})
		return
	}

	*s.config = cfg
	s.engine = engineFromConfig(s.config)

	s.render(w, r, "settings.html", map[string]interface{}{
		"Title":   "Settings",
		"Config":  s.config,
		"Message": "Settings saved.",
	})
}

// handleTest lets the operator paste a message and see what the engine
// would reply, with every rule's score.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"Title": "Test Match",
	}

	if r.Method == http.MethodPost {
		subject := r.FormValue("subject")
		body := r.FormValue("body")

		snapshot, err := s.rules.Snapshot()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		reply := s.engine.Respond(subject, body, snapshot)
		ranked := s.engine.Rank(subject+" "+body, snapshot)

		data["Subject"] = subject
		data["Body"] = body
		data["Reply"] = reply
		data["Ranked"] = ranked
		data["Tested"] = true
	}

	s.render(w, r, "test.html", data)
}

// Monitor control

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	if err := s.config.ValidateMailbox(); err != nil {
		http.Redirect(w, r, "/?error="+template.URLQueryEscaper(err.Error()), http.StatusFound)
		return
	}

	job := s.jobs.Start()
	if job == nil {
		// Already running.
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	go s.runMonitor(job)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	s.jobs.StopActive()
	http.Redirect(w, r, "/", http.StatusFound)
}

// runMonitor owns one background responder loop tied to a job's lifetime.
func (s *Server) runMonitor(job *MonitorJob) {
	ctx := job.Context()

	monitor := mailbox.NewMonitor(s.config.Mailbox)
	if err := monitor.Connect(ctx); err != nil {
		job.Fail(err.Error())
		return
	}
	defer monitor.Disconnect()

	sender, err := email.NewSender(s.config.Email)
	if err != nil {
		job.Fail(err.Error())
		return
	}

	resp := responder.New(monitor, s.engine, s.rules, sender, s.history,
		s.config.Email.From, s.config.Options.DryRun)

	interval := time.Duration(s.config.Options.IntervalMinutes) * time.Minute
	resp.RunEvery(ctx, interval, job.RecordCycle)
}

// JSON API

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.GetStats()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"total":      stats.Total,
		"replied":    stats.Replied,
		"fallback":   stats.Fallback,
		"this_month": stats.ThisMonth,
	})
}

func (s *Server) handleAPIMonitor(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.Active()
	if job == nil {
		writeJSON(w, map[string]interface{}{"status": "idle"})
		return
	}
	writeJSON(w, job.Snapshot())
}

// handleAPIRank scores every active rule against the given text, so other
// tools can consume raw scores.
func (s *Server) handleAPIRank(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("text query parameter is required"))
		return
	}

	snapshot, err := s.rules.Snapshot()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	type rankedRule struct {
		Keyword string  `json:"keyword"`
		Score   float64 `json:"score"`
	}
	ranked := s.engine.Rank(text, snapshot)
	out := make([]rankedRule, 0, len(ranked))
	for _, m := range ranked {
		out = append(out, rankedRule{Keyword: m.Keyword, Score: m.Score})
	}
	writeJSON(w, map[string]interface{}{"matches": out})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) {
	data["CSRFField"] = csrf.TemplateField(r)

	tmpl, ok := s.templates[name]
	if !ok {
		http.Error(w, "Template not found: "+name, http.StatusInternalServerError)
		return
	}
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
	}
}
