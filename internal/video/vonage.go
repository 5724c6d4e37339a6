package video

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"telehealth-server/pkg/logging"
)

const (
	defaultBaseURL = "https://video.api.vonage.com"
	defaultTimeout = 10 * time.Second
	appTokenTTL    = 5 * time.Minute
	tokenScope     = "session.connect"
)

// Config holds Vonage application credentials. PrivateKey may be the PEM
// text itself or a path to a PEM file.
type Config struct {
	ApplicationID string
	PrivateKey    string
	BaseURL       string
	Timeout       time.Duration
}

// Configured reports whether credentials are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.ApplicationID) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

// VonageGateway talks to the Vonage Video REST API. Requests carry a
// short-lived application JWT; join tokens are signed with the same key.
type VonageGateway struct {
	httpClient    *http.Client
	baseURL       string
	applicationID string
	key           *rsa.PrivateKey
	logger        *logging.Logger
	now           func() time.Time
}

// New returns a Vonage gateway, or Disabled when cfg carries no credentials.
func New(cfg Config, logger *logging.Logger) (Gateway, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.Configured() {
		logger.Warn("vonage credentials missing, video sessions disabled")
		return Disabled{}, nil
	}
	return NewVonageGateway(cfg, logger)
}

// NewVonageGateway parses the private key and builds the REST client.
func NewVonageGateway(cfg Config, logger *logging.Logger) (*VonageGateway, error) {
	if logger == nil {
		logger = logging.Default()
	}
	pem, err := loadPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("video: parse private key: %w", err)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &VonageGateway{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(baseURL, "/"),
		applicationID: cfg.ApplicationID,
		key:           key,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func loadPrivateKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "-----BEGIN") {
		// Keys passed through env files often carry literal \n sequences.
		return []byte(strings.ReplaceAll(value, `\n`, "\n")), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("video: read private key file: %w", err)
	}
	return data, nil
}

func (g *VonageGateway) appToken() (string, error) {
	now := g.now()
	claims := jwt.MapClaims{
		"application_id": g.applicationID,
		"iat":            now.Unix(),
		"exp":            now.Add(appTokenTTL).Unix(),
		"jti":            uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(g.key)
}

// CreateSession creates a routed session so media flows through the
// provider's media servers.
func (g *VonageGateway) CreateSession(ctx context.Context) (string, error) {
	token, err := g.appToken()
	if err != nil {
		return "", fmt.Errorf("video: sign application token: %w", err)
	}

	form := url.Values{}
	form.Set("p2p.preference", "disabled")
	form.Set("archiveMode", "manual")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/session/create", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("video: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("video: create session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("video: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("video: create session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sessions []struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &sessions); err != nil {
		return "", fmt.Errorf("video: decode session: %w", err)
	}
	if len(sessions) == 0 || sessions[0].SessionID == "" {
		return "", fmt.Errorf("video: create session: empty response")
	}

	g.logger.Debug("video session created", "session_id", sessions[0].SessionID)
	return sessions[0].SessionID, nil
}

// GenerateToken signs a client token for sessionID.
func (g *VonageGateway) GenerateToken(sessionID string, opts TokenOptions) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("video: session id is required")
	}
	role := opts.Role
	if role == "" {
		role = RolePublisher
	}
	now := g.now()
	expires := opts.ExpireTime
	if expires.IsZero() {
		expires = now.Add(24 * time.Hour)
	}
	if !expires.After(now) {
		return "", fmt.Errorf("video: token expiry %s is in the past", expires.Format(time.RFC3339))
	}

	claims := jwt.MapClaims{
		"application_id": g.applicationID,
		"scope":          tokenScope,
		"session_id":     sessionID,
		"role":           string(role),
		"sub":            "video",
		"iat":            now.Unix(),
		"exp":            expires.Unix(),
		"jti":            uuid.NewString(),
	}
	if opts.Data != "" {
		claims["connection_data"] = opts.Data
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(g.key)
	if err != nil {
		return "", fmt.Errorf("video: sign token: %w", err)
	}
	return token, nil
}

var _ Gateway = (*VonageGateway)(nil)
