package crypto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/famkeep/vaultsync/internal/errs"
)

// Header names for crypto boundary authorization.
const (
	HeaderServiceSecret = "X-Service-Secret"
	HeaderSessionToken  = "X-Session-Token"
)

// Remote is the network-backed Cipher. The master key lives only on the
// remote boundary; this client forwards the shared service secret and the
// caller's session token with every request.
type Remote struct {
	url    string
	secret string
	client *http.Client
}

// NewRemote constructs a client for the crypto boundary at url.
func NewRemote(url, sharedSecret string) *Remote {
	return &Remote{
		url:    url,
		secret: sharedSecret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type cryptoRequest struct {
	Action  string `json:"action"`
	Text    string `json:"text,omitempty"`
	Payload string `json:"payload,omitempty"`
}

type cryptoResponse struct {
	Ciphertext string `json:"ciphertext,omitempty"`
	Plaintext  string `json:"plaintext,omitempty"`
	Legacy     bool   `json:"legacy,omitempty"`
	Valid      bool   `json:"valid,omitempty"`
	Error      string `json:"error,omitempty"`
	Details    string `json:"details,omitempty"`
}

func (r *Remote) call(ctx context.Context, token string, req cryptoRequest) (*cryptoResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderServiceSecret, r.secret)
	httpReq.Header.Set(HeaderSessionToken, token)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("crypto boundary: %w", err)
	}
	defer resp.Body.Close()

	var out cryptoResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); decodeErr != nil {
		if resp.StatusCode == http.StatusOK {
			return nil, fmt.Errorf("crypto boundary: decode response: %w", decodeErr)
		}
		// Keep error responses diagnosable even when the body is not JSON.
		out.Error = "unreadable error body: " + decodeErr.Error()
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return &out, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("crypto boundary: %s: %w", out.Error, errs.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("crypto boundary: %w", errs.ErrRateLimited)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("crypto boundary: %s: %w", out.Error, errs.ErrCryptoFailed)
	default:
		return nil, fmt.Errorf("crypto boundary: status %d: %s", resp.StatusCode, out.Error)
	}
}

func (r *Remote) Encrypt(ctx context.Context, plaintext, sessionToken string) (string, error) {
	out, err := r.call(ctx, sessionToken, cryptoRequest{Action: "encrypt", Text: plaintext})
	if err != nil {
		return "", err
	}
	return out.Ciphertext, nil
}

func (r *Remote) Decrypt(ctx context.Context, payload, sessionToken string) (string, bool, error) {
	out, err := r.call(ctx, sessionToken, cryptoRequest{Action: "decrypt", Payload: payload})
	if err != nil {
		return "", false, err
	}
	return out.Plaintext, out.Legacy, nil
}

func (r *Remote) Health(ctx context.Context, sessionToken string) error {
	out, err := r.call(ctx, sessionToken, cryptoRequest{Action: "health"})
	if err != nil {
		return err
	}
	if !out.Valid {
		return fmt.Errorf("self test failed: %w", errs.ErrCryptoFailed)
	}
	return nil
}
