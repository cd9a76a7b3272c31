// Package servicetest provides an in-process configuration service for
// tests.
package servicetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/attributes"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/resource"
	"github.com/google/uuid"
)

const sessionCookie = "nodeagent_session"

// Server is a fake configuration service. Its exported fields may be set
// before the server handles requests and read after.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Nodes          map[string]*node.Node
	Registrations  map[string]string
	AttributeFiles []attributes.File
	Resources      []resource.Resource
	// Faults maps "METHOD route" (eg. "GET nodes") to a status code returned
	// instead of handling the request.
	Faults map[string]int

	RegistrationPosts int
	NodePuts          int
	Calls             []string

	sessions map[string]string
}

// New starts a fake service. It is closed when the test completes.
func New(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		Nodes:         map[string]*node.Node{},
		Registrations: map[string]string{},
		Faults:        map[string]int{},
		sessions:      map[string]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /nodes/{id}", s.route("GET nodes", s.getNode))
	mux.HandleFunc("PUT /nodes/{id}", s.route("PUT nodes", s.authed(s.putNode)))
	mux.HandleFunc("GET /nodes/{id}/compile", s.route("GET compile", s.authed(s.compile)))
	mux.HandleFunc("GET /registrations/{id}", s.route("GET registrations", s.getRegistration))
	mux.HandleFunc("POST /registrations", s.route("POST registrations", s.postRegistration))
	mux.HandleFunc("POST /openid/consumer/start", s.route("POST auth-start", s.startAuth))
	mux.HandleFunc("POST /openid/consumer/complete", s.route("POST auth-complete", s.completeAuth))
	mux.HandleFunc("GET /cookbooks/_attribute_files", s.route("GET attribute-files", s.authed(s.attributeFiles)))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Count returns how many requests were routed to name.
func (s *Server) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (s *Server) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.Calls = append(s.Calls, name)
		code := s.Faults[name]
		s.mu.Unlock()
		if code != 0 {
			http.Error(w, "injected fault", code)
			return
		}
		h(w, r)
	}
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		s.mu.Lock()
		_, ok := s.sessions[cookieValue(c, err)]
		s.mu.Unlock()
		if !ok {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func cookieValue(c *http.Cookie, err error) string {
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n, ok := s.Nodes[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, n)
}

func (s *Server) putNode(w http.ResponseWriter, r *http.Request) {
	var n node.Node
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if n.SafeName() != r.PathValue("id") {
		http.Error(w, "node name does not match path", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.Nodes[r.PathValue("id")] = &n
	s.NodePuts++
	s.mu.Unlock()
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) compile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n, ok := s.Nodes[r.PathValue("id")]
	resources := append([]resource.Resource(nil), s.Resources...)
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]interface{}{
		"node":       n,
		"collection": map[string]interface{}{"resources": resources},
	})
}

func (s *Server) getRegistration(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, ok := s.Registrations[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{"id": r.PathValue("id")})
}

func (s *Server) postRegistration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" || body.Password == "" {
		http.Error(w, "id and password are required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.Registrations[body.ID]; exists {
		http.Error(w, "already registered", http.StatusConflict)
		return
	}
	s.Registrations[body.ID] = body.Password
	s.RegistrationPosts++
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"uri": s.URL + "/registrations/" + body.ID})
}

func (s *Server) startAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"openid_identifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	prefix := s.URL + "/openid/server/node/"
	if !strings.HasPrefix(body.Identifier, prefix) {
		http.Error(w, "unknown identity "+body.Identifier, http.StatusBadRequest)
		return
	}
	id := strings.TrimPrefix(body.Identifier, prefix)
	writeJSON(w, map[string]string{"action": "/openid/consumer/complete?id=" + id})
}

func (s *Server) completeAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.Registrations[id]
	if !ok || secret != body.Password {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}
	token := uuid.NewString()
	s.sessions[token] = id
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/"})
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) attributeFiles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	files := append([]attributes.File{}, s.AttributeFiles...)
	s.mu.Unlock()
	writeJSON(w, files)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
