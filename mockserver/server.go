// Package mockserver is an in-memory stand-in for the inventory backend,
// used for local development and the integration tests.
package mockserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"smartbiz/log"
)

// LowStockThreshold matches the backend's alert level.
const LowStockThreshold = 40

type product struct {
	Name      string
	NameLocal string
	Unit      string
	Stock     float64
}

type user struct {
	Name string
	Hash []byte
}

// Seed inventory: ten grocery staples at 100 units each.
func seedProducts() []*product {
	items := []struct{ local, name, unit string }{
		{"Chamal", "Rice", "kg"},
		{"Daal", "Lentils", "kg"},
		{"Tel", "Oil", "litre"},
		{"Chini", "Sugar", "kg"},
		{"Nun", "Salt", "packet"},
		{"Chiura", "Beaten Rice", "kg"},
		{"Maida", "Flour", "kg"},
		{"Anda", "Eggs", "piece"},
		{"Besar", "Turmeric", "packet"},
		{"Biskut", "Biscuits", "packet"},
	}
	out := make([]*product, len(items))
	for i, it := range items {
		out[i] = &product{Name: it.name, NameLocal: it.local, Unit: it.unit, Stock: 100}
	}
	return out
}

type Server struct {
	router   *mux.Router
	hashCost int
	latency  time.Duration

	mu       sync.Mutex
	users    map[string]user
	tokens   map[string]string
	products []*product
	script   []Command
	next     int
	received []Upload
	ledger   []transaction
	now      func() time.Time
}

// Upload records one audio file the server accepted.
type Upload struct {
	Filename    string
	ContentType string
	Format      string
	Samples     uint64
}

type Option func(*Server)

// WithScript replaces the commands returned, in order, by /process-voice.
func WithScript(cmds ...Command) Option {
	return func(s *Server) { s.script = cmds }
}

// WithLatency delays every voice reply.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithClock replaces the time source stamped on stock movements.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithHashCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Server) { s.hashCost = cost }
}

// New returns a server with the seed inventory and one account,
// user@user.com with password "user".
func New(opts ...Option) *Server {
	s := &Server{
		hashCost: bcrypt.DefaultCost,
		users:    make(map[string]user),
		tokens:   make(map[string]string),
		products: seedProducts(),
		script:   DefaultScript(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if hash, err := bcrypt.GenerateFromPassword([]byte("user"), s.hashCost); err == nil {
		s.users["user@user.com"] = user{Name: "user", Hash: hash}
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/stock", s.requireToken(s.handleStock)).Methods(http.MethodGet)
	r.HandleFunc("/process-voice", s.handleVoice).Methods(http.MethodPost)
	r.HandleFunc("/api/reports/sales-pdf", s.requireToken(s.handleSalesReport)).Methods(http.MethodGet)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Received returns the uploads accepted so far.
func (s *Server) Received() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.received...)
}

// Stock returns the current level of the named item.
func (s *Server) Stock(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.find(name); p != nil {
		return p.Stock, true
	}
	return 0, false
}

// find matches an English or local name, ignoring case. Callers hold s.mu.
func (s *Server) find(name string) *product {
	for _, p := range s.products {
		if strings.EqualFold(p.Name, name) || strings.EqualFold(p.NameLocal, name) {
			return p
		}
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Infof("mock %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "SmartBiz AI Backend (mock)"})
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name, email and password are required")
		return
	}
	email := strings.ToLower(in.Email)

	s.mu.Lock()
	_, exists := s.users[email]
	s.mu.Unlock()
	if exists {
		writeDetail(w, http.StatusBadRequest, "A user with this email already exists.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.mu.Lock()
	s.users[email] = user{Name: in.Name, Hash: hash}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{
		"status":     "success",
		"message":    "User created successfully",
		"user_email": email,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}
	email := strings.ToLower(in.Email)

	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.Hash, []byte(in.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = email
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		_, valid := s.tokens[token]
		s.mu.Unlock()
		if !ok || !valid {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next(w, r)
	}
}

type stockItem struct {
	Item      string  `json:"item"`
	ItemLocal string  `json:"item_nepali"`
	Stock     float64 `json:"current_stock"`
	Unit      string  `json:"unit"`
}

func (s *Server) handleStock(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := make([]stockItem, len(s.products))
	for i, p := range s.products {
		items[i] = stockItem{Item: p.Name, ItemLocal: p.NameLocal, Stock: p.Stock, Unit: p.Unit}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "inventory": items})
}
