// Package xdrtest provides an in-process fake of the XDR public API for tests.
package xdrtest

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const apiPrefix = "/public_api/v1/"

// Request is a request received by the fake server.
type Request struct {
	Path   string
	Header http.Header
	Data   map[string]interface{}
}

// Handler answers a request with a status code and a JSON body.
type Handler func(req Request) (int, interface{})

// Server records requests and answers them from registered routes.
// Unregistered paths answer 404.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Handler
	requests []Request
}

// NewServer starts a fake server closed at test cleanup. The test is
// skipped when the sandbox does not allow binding a local port.
func NewServer(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot bind for test: %v", err)
	}
	ln.Close()

	s := &Server{routes: make(map[string]Handler)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	var body struct {
		RequestData map[string]interface{} `json:"request_data"`
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	_ = dec.Decode(&body)

	req := Request{Path: path, Header: r.Header.Clone(), Data: body.RequestData}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	h, ok := s.routes[path]
	s.mu.Unlock()

	if !ok || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	status, resp := h(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if raw, ok := resp.(string); ok {
		w.Write([]byte(raw))
		return
	}
	json.NewEncoder(w).Encode(resp)
}

// Handle registers h for an API path such as "incidents/get_incidents/".
func (s *Server) Handle(path string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = h
}

// Reply answers path with 200 and {"reply": reply}.
func (s *Server) Reply(path string, reply interface{}) {
	s.Handle(path, func(Request) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"reply": reply}
	})
}

// ReplyJSON answers path with 200 and the given raw JSON document, which
// must already contain the reply envelope.
func (s *Server) ReplyJSON(path, doc string) {
	s.Handle(path, func(Request) (int, interface{}) {
		return http.StatusOK, doc
	})
}

// Fail answers path with status and an error envelope.
func (s *Server) Fail(path string, status int, code, msg string) {
	s.Handle(path, func(Request) (int, interface{}) {
		return status, map[string]interface{}{"reply": map[string]interface{}{
			"err_code":  code,
			"err_msg":   msg,
			"err_extra": nil,
		}}
	})
}

// Requests returns the requests received for path, or all requests when
// path is empty.
func (s *Server) Requests(path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if path == "" || r.Path == path {
			out = append(out, r)
		}
	}
	return out
}
