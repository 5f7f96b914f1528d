// Package relay is the trusted server side of relayed mode: it decrypts
// the client's credential headers, signs the real backend request, and
// streams the response back unmodified.
package relay

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/nbykov/go-bedrockgw/internal/auth"
	"github.com/nbykov/go-bedrockgw/internal/config"
	"github.com/nbykov/go-bedrockgw/internal/upstream"
)

// Server proxies relayed invocations to the backend.
type Server struct {
	// Endpoint overrides the regional backend URL when set (tests).
	Endpoint string
}

// NewServer creates a relay proxy.
func NewServer() *Server {
	return &Server{}
}

// ServeHTTP handles one relayed invocation. Credentials travel encrypted
// in the Authorization header; the shared encryption key arrives alongside
// so the relay never holds long-lived secrets of its own.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	modelID := r.Header.Get("X-Model-Id")
	encryptionKey := r.Header.Get("X-Encryption-Key")
	stream := r.Header.Get("Should-Stream") == "true"
	async := r.Header.Get("Is-Async") == "true"

	if modelID == "" || encryptionKey == "" {
		http.Error(w, "missing relay headers", http.StatusBadRequest)
		return
	}

	region, accessKey, secretKey, err := auth.ParseBearerTriple(r.Header.Get("Authorization"), encryptionKey)
	if err != nil {
		slog.Warn("relay.auth_failed", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "invalid relay credentials")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}

	cfg := &config.Config{Mode: config.ModeDirect, Region: region, Endpoint: s.Endpoint}
	client := upstream.NewClient(cfg, auth.NewDirectSigner(region, accessKey, secretKey, ""))

	var resp *http.Response
	if stream {
		resp, err = client.InvokeStream(r.Context(), modelID, body)
	} else {
		resp, err = client.Invoke(r.Context(), modelID, body, async)
	}
	if err != nil {
		slog.Error("relay.upstream_failed", "model", modelID, "error", err)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	s.pipe(w, resp)
}

// pipe copies the backend response through, flushing as chunks arrive so
// streamed frames reach the client without buffering delays.
func (s *Server) pipe(w http.ResponseWriter, resp *http.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				slog.Warn("relay.stream_interrupted", "error", err)
			}
			return
		}
	}
}
