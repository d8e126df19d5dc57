package visualization

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/ratelimit"
	"github.com/nvandessel/cogmap/internal/simulation"
)

// Server serves a map's rendering and runs simulations on copies of it.
// The served map itself is never stepped.
type Server struct {
	m          *fcm.Map
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex // guards addr, listener, httpServer and m
	addr       string
	epochs     *ratelimit.Limiter
}

// NewServer creates a server for m. A nil logger discards output.
func NewServer(m *fcm.Map, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{m: m, logger: logger, epochs: ratelimit.NewEpochBudget()}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/graph.dot", s.handleDOT)
	mux.HandleFunc("/graph.json", s.handleJSON)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/converge", s.handleConverge)
	return mux
}

// ListenAndServe starts the HTTP server on addr ("localhost:0" picks a free
// port) and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Unlock()

	s.logger.Info("graph server listening", "addr", s.addr, "map", s.m.Name())

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "cogmap graph server: "+s.m.Name()+"\n\n"+
		"  /graph.dot\n  /graph.json\n  /api/run?epochs=N\n  /api/converge?max_delta=D&max_epochs=N\n")
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	dot := RenderDOT(s.m)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	io.WriteString(w, dot)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	g := RenderJSON(s.m)
	s.mu.Unlock()
	writeJSON(w, g)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	epochs, err := intParam(r, "epochs", 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.chargeEpochs(w, epochs) {
		return
	}
	res, err := s.controller().Run(epochs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, NewRunReport(res))
}

func (s *Server) handleConverge(w http.ResponseWriter, r *http.Request) {
	maxEpochs, err := intParam(r, "max_epochs", 1000)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	maxDelta := 0.001
	if v := r.URL.Query().Get("max_delta"); v != "" {
		maxDelta, err = strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "invalid max_delta: "+v, http.StatusBadRequest)
			return
		}
	}
	if !s.chargeEpochs(w, maxEpochs) {
		return
	}
	res, err := s.controller().Converge(maxDelta, maxEpochs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, NewRunReport(res))
}

// chargeEpochs takes n epochs from the server's budget, answering 429 when
// the request is too large or the budget is spent.
func (s *Server) chargeEpochs(w http.ResponseWriter, n int) bool {
	if err := ratelimit.CheckEpochs(s.epochs, n); err != nil {
		s.logger.Warn("simulation request refused", "epochs", n, "error", err)
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return false
	}
	return true
}

// controller steps a private copy so concurrent requests never share state.
func (s *Server) controller() *simulation.Controller {
	s.mu.Lock()
	m := s.m.Copy()
	s.mu.Unlock()
	return simulation.NewController(m, simulation.Config{Trace: true, Logger: s.logger})
}

// RunReport is the JSON form of a simulation result. Values use their text
// form so NaN and infinities survive encoding.
type RunReport struct {
	Map       string     `json:"map"`
	Mode      string     `json:"mode"`
	Epochs    int        `json:"epochs"`
	Converged bool       `json:"converged"`
	Delta     string     `json:"delta"`
	Concepts  []string   `json:"concepts"`
	Trace     [][]string `json:"trace,omitempty"`
	Final     []string   `json:"final"`
}

// NewRunReport converts a result. Final holds the last traced outputs.
func NewRunReport(res *simulation.Result) *RunReport {
	rep := &RunReport{
		Map:       res.Map,
		Mode:      string(res.Mode),
		Epochs:    res.Epochs,
		Converged: res.Converged,
		Delta:     res.Delta.String(),
	}
	if res.Trace != nil {
		rep.Concepts = res.Trace.Concepts
		for _, snap := range res.Trace.Epochs {
			rep.Trace = append(rep.Trace, valueStrings(snap.Outputs))
		}
		rep.Final = valueStrings(res.Trace.Last().Outputs)
	}
	return rep
}

func valueStrings(vs []fcm.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error: "+err.Error(), http.StatusInternalServerError)
	}
}
