package relay

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omemo/internal/domain"
)

// maxBody caps request bodies; a bundle with a hundred pre-keys is well under it.
const maxBody = 1 << 20

// ServerConfig tunes the relay server.
type ServerConfig struct {
	// RatePerSecond and Burst limit requests per client address. Zero disables limiting.
	RatePerSecond float64
	Burst         int
}

type bundleKey struct {
	owner  string
	device domain.DeviceID
}

// Server holds device lists and bundles in memory and serves them over HTTP.
type Server struct {
	mu      sync.RWMutex
	lists   map[string]DeviceListBody
	bundles map[bundleKey]domain.SessionKeyBundle

	limiter *limiter
	log     zerolog.Logger
}

// NewServer returns an empty relay.
func NewServer(cfg ServerConfig, log zerolog.Logger) *Server {
	return &Server{
		lists:   make(map[string]DeviceListBody),
		bundles: make(map[bundleKey]domain.SessionKeyBundle),
		limiter: newLimiter(cfg.RatePerSecond, cfg.Burst),
		log:     log,
	}
}

// Handler returns the relay's routes wrapped in rate limiting and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /devicelist/{jid}", s.handlePublishDeviceList)
	mux.HandleFunc("GET /devicelist/{jid}", s.handleFetchDeviceList)
	mux.HandleFunc("POST /bundle", s.handlePublishBundle)
	mux.HandleFunc("GET /bundle/{jid}/{device}", s.handleFetchBundle)
	return s.accessLog(s.rateLimit(mux))
}

func (s *Server) handlePublishDeviceList(w http.ResponseWriter, r *http.Request) {
	owner, ok := bareFromPath(w, r)
	if !ok {
		return
	}
	var body DeviceListBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	publisher, err := domain.ParseJID(body.Publisher)
	if err != nil || publisher.Bare() != owner {
		http.Error(w, "publisher does not own this node", http.StatusForbidden)
		return
	}
	if body.Devices == nil {
		body.Devices = []domain.DeviceID{}
	}

	s.mu.Lock()
	s.lists[owner] = body
	s.mu.Unlock()
	s.log.Info().Str("owner", owner).Int("devices", len(body.Devices)).Msg("device list published")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetchDeviceList(w http.ResponseWriter, r *http.Request) {
	owner, ok := bareFromPath(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	body, found := s.lists[owner]
	s.mu.RUnlock()
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, body)
}

func (s *Server) handlePublishBundle(w http.ResponseWriter, r *http.Request) {
	var b domain.SessionKeyBundle
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&b); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	owner, err := domain.ParseJID(b.Identity)
	if err != nil || b.DeviceID == 0 {
		http.Error(w, "bundle needs an identity and a device id", http.StatusBadRequest)
		return
	}
	b.Identity = owner.Bare()

	s.mu.Lock()
	s.bundles[bundleKey{owner: b.Identity, device: b.DeviceID}] = b
	s.mu.Unlock()
	s.log.Info().Str("owner", b.Identity).Uint32("device", uint32(b.DeviceID)).
		Int("pre_keys", len(b.OneTimePreKeys)).Msg("bundle published")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetchBundle(w http.ResponseWriter, r *http.Request) {
	owner, ok := bareFromPath(w, r)
	if !ok {
		return
	}
	device, err := strconv.ParseUint(r.PathValue("device"), 10, 32)
	if err != nil {
		http.Error(w, "bad device id", http.StatusBadRequest)
		return
	}
	s.mu.RLock()
	b, found := s.bundles[bundleKey{owner: owner, device: domain.DeviceID(device)}]
	s.mu.RUnlock()
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, b)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.allow(host, time.Now()) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code and size for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// bareFromPath parses the {jid} path segment and normalises it to a bare JID.
func bareFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	jid, err := domain.ParseJID(r.PathValue("jid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return jid.Bare(), true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
