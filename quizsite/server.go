// Package quizsite serves the quiz application the smoke suites run
// against: a main menu, the category page, and the quiz page whose
// question counter is rendered by a script from a JSON question bank.
package quizsite

import (
	"bytes"
	"embed"
	"encoding/json"
	"io/fs"
	"math/rand"
	"net/http"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/liuxd6825/quizsmoke/log"
)

//go:embed assets
var assets embed.FS

// DefaultBank returns the bundled question bank.
func DefaultBank() Bank {
	data, err := assets.ReadFile("assets/quiz_data.json")
	if err != nil {
		panic(err)
	}
	b, err := LoadBank(bytes.NewReader(data))
	if err != nil {
		panic(err)
	}
	return b
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs every request at debug level.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegisterer counts requests in quizsite_requests_total.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quizsite_requests_total",
			Help: "Requests served by the quiz site, by route and status code.",
		}, []string{"route", "code"})
		reg.MustRegister(s.requests)
	}
}

// WithSeed makes question shuffling deterministic.
func WithSeed(seed int64) Option {
	return func(s *Server) { s.rng = rand.New(rand.NewSource(seed)) } //nolint:gosec
}

// Server is the quiz application.
type Server struct {
	bank     Bank
	logger   *log.Logger
	requests *prometheus.CounterVec
	router   chi.Router

	mu  sync.Mutex
	rng *rand.Rand
}

// NewServer returns the quiz application serving bank.
func NewServer(bank Bank, opts ...Option) *Server {
	s := &Server{
		bank: bank,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Get("/", s.page("index.html"))
	r.Get("/index.html", s.page("index.html"))
	r.Get("/general.html", s.page("general.html"))
	r.Get("/quiz_bm.html", s.page("quiz_bm.html"))
	r.Get("/quiz.js", s.page("quiz.js"))
	r.Get("/style.css", s.page("style.css"))
	r.Get("/quiz_data.json", s.handleQuizData)
	r.Post("/score", s.handleScore)
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		if s.requests != nil {
			s.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		}
		s.logger.Debugf("quizsite:ServeHTTP", "%s %s -> %d (%s)", r.Method, r.URL.Path, code, time.Since(start))
	})
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(assets, path.Join("assets", name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
	}
}

// handleQuizData serves the shuffled bank. A count of 0, like a missing or
// oversized one, selects every question, as the quiz page does for counts
// below one.
func (s *Server) handleQuizData(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respondError(w, http.StatusBadRequest, "count must be a non-negative integer")
			return
		}
		n = v
	}
	s.mu.Lock()
	questions := s.bank.Shuffle(s.rng).Take(n)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, questions)
}

type scoreRequest struct {
	Answers []Answer `json:"answers"`
	Total   int      `json:"total"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid answer sheet: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.bank.Score(req.Answers, req.Total))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{msg, status})
}
