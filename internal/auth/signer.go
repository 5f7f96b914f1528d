package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nbykov/go-bedrockgw/internal/config"
)

const (
	signingService = "bedrock"
	algorithm      = "AWS4-HMAC-SHA256"

	// ContentTypeEventStream marks a streaming response body.
	ContentTypeEventStream = "application/vnd.amazon.eventstream"
)

// SignInput describes one outbound request to authorize.
type SignInput struct {
	Method  string
	URL     string
	Body    []byte
	ModelID string
	Stream  bool
	Async   bool
	// Base headers (tracing, session) are passed through unchanged.
	Base map[string]string
}

// Signer produces authorization headers for outbound requests. The mode is
// fixed at construction; Signer is stateless afterwards and safe for
// concurrent use.
type Signer struct {
	mode          config.Mode
	region        string
	accessKey     string
	secretKey     string
	sessionToken  string
	encryptionKey string

	// now is injectable for deterministic signatures in tests.
	now func() time.Time
}

// NewSigner builds a Signer from gateway configuration.
func NewSigner(cfg *config.Config) *Signer {
	return &Signer{
		mode:          cfg.Mode,
		region:        cfg.Region,
		accessKey:     cfg.AccessKey,
		secretKey:     cfg.SecretKey,
		sessionToken:  cfg.SessionToken,
		encryptionKey: cfg.EncryptionKey,
		now:           time.Now,
	}
}

// NewDirectSigner builds a direct-mode Signer from explicit credentials.
// The relay uses this after decrypting the client's credential headers.
func NewDirectSigner(region, accessKey, secretKey, sessionToken string) *Signer {
	return &Signer{
		mode:         config.ModeDirect,
		region:       region,
		accessKey:    accessKey,
		secretKey:    secretKey,
		sessionToken: sessionToken,
		now:          time.Now,
	}
}

// Headers returns the authorization headers for the request, per mode.
func (s *Signer) Headers(in SignInput) (map[string]string, error) {
	headers := map[string]string{}
	for k, v := range in.Base {
		headers[k] = v
	}
	if s.mode == config.ModeRelayed {
		return s.relayedHeaders(headers, in)
	}
	return s.signedHeaders(headers, in)
}

func (s *Signer) relayedHeaders(headers map[string]string, in SignInput) (map[string]string, error) {
	authz, err := BearerTriple(s.region, s.accessKey, s.secretKey, s.encryptionKey)
	if err != nil {
		return nil, err
	}
	headers["X-Model-Id"] = in.ModelID
	headers["X-Encryption-Key"] = s.encryptionKey
	headers["Should-Stream"] = strconv.FormatBool(in.Stream)
	headers["Is-Async"] = strconv.FormatBool(in.Async)
	headers["Authorization"] = authz
	return headers, nil
}

func (s *Signer) signedHeaders(headers map[string]string, in SignInput) (map[string]string, error) {
	if s.accessKey == "" || s.secretKey == "" {
		return nil, ErrNoCredentials
	}
	u, err := url.Parse(in.URL)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}

	t := s.now().UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	accept := "application/json"
	if in.Stream {
		accept = ContentTypeEventStream
	}
	payloadHash := hexSHA256(in.Body)

	signed := map[string]string{
		"accept":               accept,
		"host":                 u.Host,
		"x-amz-content-sha256": payloadHash,
		"x-amz-date":           amzDate,
	}
	if s.sessionToken != "" {
		signed["x-amz-security-token"] = s.sessionToken
	}

	names := make([]string, 0, len(signed))
	for k := range signed {
		names = append(names, k)
	}
	sort.Strings(names)

	var canonicalHeaders strings.Builder
	for _, k := range names {
		canonicalHeaders.WriteString(k)
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(strings.TrimSpace(signed[k]))
		canonicalHeaders.WriteString("\n")
	}
	signedHeaderList := strings.Join(names, ";")

	canonicalRequest := strings.Join([]string{
		in.Method,
		canonicalURI(u),
		canonicalQuery(u),
		canonicalHeaders.String(),
		signedHeaderList,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{dateStamp, s.region, signingService, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	key := signingKey(s.secretKey, dateStamp, s.region, signingService)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	headers["Accept"] = accept
	headers["X-Amz-Date"] = amzDate
	headers["X-Amz-Content-Sha256"] = payloadHash
	if s.sessionToken != "" {
		headers["X-Amz-Security-Token"] = s.sessionToken
	}
	headers["Authorization"] = fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, s.accessKey, scope, signedHeaderList, signature)
	return headers, nil
}

// canonicalURI re-encodes each path segment with the strict unreserved set
// the signature scheme requires (the plain escaped path keeps characters
// like ":" that must be percent-encoded here).
func canonicalURI(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	segments := strings.Split(u.Path, "/")
	for i, seg := range segments {
		segments[i] = uriEncode(seg)
	}
	return strings.Join(segments, "/")
}

func canonicalQuery(u *url.URL) string {
	q := u.Query()
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		values := q[k]
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, uriEncode(k)+"="+uriEncode(v))
		}
	}
	return strings.Join(parts, "&")
}

func uriEncode(s string) string {
	var sb strings.Builder
	for _, b := range []byte(s) {
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9',
			b == '-', b == '.', b == '_', b == '~':
			sb.WriteByte(b)
		default:
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}

func signingKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
