// Package pin implements the short-lived PIN handshake that bridges a plex.tv
// identity into the system.
//
// States: idle → pin_created → (polling) → {authenticated | expired | error}.
// Pins are held only in memory for the duration of the handshake; they are
// meaningless after expiry, so nothing is persisted.
package pin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/usher/internal/shared"
)

const (
	plexTVBaseURL = "https://plex.tv/api/v2"
	plexAuthURL   = "https://app.plex.tv/auth"

	requestTimeout = 15 * time.Second

	// PollInterval is the fixed caller-side polling cadence.
	PollInterval = 2 * time.Second
)

// Pin is one in-flight handshake. The code is what the person types at the
// auth URL; ExpiresAt is the locally-stored deadline that gates every check.
type Pin struct {
	ID        string    `json:"pin_id"`
	Code      string    `json:"code"`
	AuthURL   string    `json:"auth_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the pin's locally-known deadline has passed.
func (p *Pin) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// CheckResult is the outcome of one poll iteration. Token is populated once
// the pin has been claimed; it is never serialized.
type CheckResult struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	Token         string `json:"-"`
}

// Service creates pins against plex.tv and resolves them to a verified email.
// Safe for concurrent use.
type Service struct {
	tvURL      string
	clientID   string
	product    string
	httpClient *http.Client
	logger     *log.Logger

	mu   sync.Mutex
	pins map[string]*Pin
}

// NewService creates a pin service. clientID and product identify this
// application to plex.tv on every request.
func NewService(clientID, product string, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{
		tvURL:      plexTVBaseURL,
		clientID:   clientID,
		product:    product,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
		pins:       make(map[string]*Pin),
	}
}

type pinResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	AuthToken string    `json:"authToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Service) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Client-Identifier", s.clientID)
	req.Header.Set("X-Plex-Product", s.product)
}

// CreatePin requests a new PIN from plex.tv and stores it in memory. The
// returned auth URL is what the person opens in a browser to claim the code.
func (s *Service) CreatePin(ctx context.Context) (*Pin, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := s.tvURL + "/pins?strong=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var created pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode pin response: %w", err)
	}

	pin := &Pin{
		ID:        strconv.FormatInt(created.ID, 10),
		Code:      created.Code,
		AuthURL:   s.authURL(created.Code),
		ExpiresAt: created.ExpiresAt,
	}

	s.mu.Lock()
	s.pins[pin.ID] = pin
	s.mu.Unlock()

	s.logger.Debug("created pin", "pin_id", pin.ID, "expires_at", pin.ExpiresAt)
	return pin, nil
}

func (s *Service) authURL(code string) string {
	values := url.Values{}
	values.Set("clientID", s.clientID)
	values.Set("code", code)
	values.Set("context[device][product]", s.product)
	return plexAuthURL + "#?" + values.Encode()
}

func (s *Service) lookup(pinID string) (*Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pin, ok := s.pins[pinID]
	if !ok {
		return nil, shared.ErrPinNotFound
	}
	return pin, nil
}

// forget drops a finished pin from the in-memory store.
func (s *Service) forget(pinID string) {
	s.mu.Lock()
	delete(s.pins, pinID)
	s.mu.Unlock()
}

// CheckPin performs one poll iteration. Expiry is enforced against the stored
// deadline before any remote call, so an expired pin never reaches plex.tv
// even if the remote side would still accept it. Once the remote reports a
// token the associated email is resolved immediately with one more call.
func (s *Service) CheckPin(ctx context.Context, pinID string) (*CheckResult, error) {
	pin, err := s.lookup(pinID)
	if err != nil {
		return nil, err
	}

	if pin.Expired(time.Now()) {
		s.forget(pinID)
		return nil, shared.ErrPinExpired
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/pins/%s", s.tvURL, url.PathEscape(pinID))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Caller cancellation is not a plex.tv outage.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		s.forget(pinID)
		return nil, shared.ErrPinNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var checked pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&checked); err != nil {
		return nil, fmt.Errorf("failed to decode pin response: %w", err)
	}

	if checked.AuthToken == "" {
		return &CheckResult{Authenticated: false}, nil
	}

	email, err := s.resolveEmail(reqCtx, checked.AuthToken)
	if err != nil {
		return nil, err
	}

	s.forget(pinID)
	s.logger.Debug("pin authenticated", "pin_id", pinID)
	return &CheckResult{Authenticated: true, Email: email, Token: checked.AuthToken}, nil
}

// resolveEmail exchanges the claimed token for the account's email.
func (s *Service) resolveEmail(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tvURL+"/user", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("X-Plex-Token", token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var account struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return "", fmt.Errorf("failed to decode account response: %w", err)
	}
	if account.Email == "" {
		return "", fmt.Errorf("%w: account has no email", shared.ErrAPIRequest)
	}
	return account.Email, nil
}

// Poll checks the pin at the fixed interval until it authenticates, expires,
// or ctx is cancelled. The loop is caller-owned: cancelling ctx stops it with
// no further cleanup, since no server-side cancellation call exists.
func (s *Service) Poll(ctx context.Context, pinID string) (*CheckResult, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		result, err := s.CheckPin(ctx, pinID)
		if err != nil {
			return nil, err
		}
		if result.Authenticated {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
