// Package server exposes commands, polling and mirroring over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/xdr-responder/internal/commands"
	"github.com/invisible-tech/xdr-responder/internal/config"
	"github.com/invisible-tech/xdr-responder/internal/fetch"
	"github.com/invisible-tech/xdr-responder/internal/poller"
	"github.com/invisible-tech/xdr-responder/internal/types"
	"github.com/invisible-tech/xdr-responder/internal/version"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

// Server is the HTTP API in front of one XDR tenant.
type Server struct {
	cfg        config.ServerConfig
	client     *xdr.Client
	runner     *commands.Runner
	poller     *poller.Poller
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
}

// New creates the server. p may be nil when polling is disabled; the fetch
// and incident routes then answer 503.
func New(cfg config.ServerConfig, client *xdr.Client, p *poller.Poller, log *logrus.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		client: client,
		runner: commands.NewRunner(client, log),
		poller: p,
		log:    log,
		router: mux.NewRouter(),
	}
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/commands", s.handleListCommands).Methods(http.MethodGet)
	api.HandleFunc("/commands/{name}", s.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/fetch-incidents", s.handleFetchIncidents).Methods(http.MethodPost)
	api.HandleFunc("/incidents", s.handleIncidents).Methods(http.MethodGet)
	api.HandleFunc("/remote-data", s.handleRemoteData).Methods(http.MethodPost)
	api.HandleFunc("/mapping-fields", s.handleMappingFields).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server. It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.HTTPAddr).Info("Responder listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type commandRequest struct {
	Args map[string]interface{} `json:"args"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError reports err the way the host platform shows command failures.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch commands.Outcome(err) {
	case "validation", "conflict":
		status = http.StatusBadRequest
	case "unknown":
		status = http.StatusNotFound
	case "api":
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: "Error: " + err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":  "healthy",
		"version": version.Version,
	}
	if s.poller != nil {
		body["poller"] = s.poller.State()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	all := commands.All()
	out := make([]entry, 0, len(all))
	for _, c := range all {
		out = append(out, entry{Name: c.Name, Description: c.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req commandRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Error: invalid JSON body"})
			return
		}
	}
	args := make(commands.Args, len(req.Args))
	for k, v := range req.Args {
		args[k] = argString(v)
	}
	res, err := s.runner.Run(r.Context(), name, args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// argString renders a JSON argument value as the string form commands
// accept. Lists become comma-separated.
func argString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []interface{}:
		out := ""
		for i, item := range t {
			if i > 0 {
				out += ","
			}
			out += argString(item)
		}
		return out
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

var errPollerDisabled = errors.New("incident polling is disabled")

type fetchResponse struct {
	Incidents []types.PollIncident `json:"incidents"`
	LastRun   types.LastRun        `json:"last_run"`
}

func (s *Server) handleFetchIncidents(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Error: " + errPollerDisabled.Error()})
		return
	}
	incidents, err := s.poller.RunOnce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	mark, err := s.poller.Mark(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{Incidents: incidents, LastRun: mark})
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Error: " + errPollerDisabled.Error()})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("Error: invalid limit %q", v)})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.poller.Incidents(limit))
}

func (s *Server) handleRemoteData(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Error: invalid JSON body"})
		return
	}
	args := fetch.RemoteDataArgs{ID: argString(body["id"]), LastUpdate: argString(body["lastUpdate"])}
	resp, err := fetch.GetRemoteData(r.Context(), s.client, args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMappingFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fetch.MappingFields())
}
