package crypto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/famkeep/vaultsync/internal/errs"
)

// boundaryStub mimics the crypto boundary endpoint.
func boundaryStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderServiceSecret) != "svc-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "bad service credential"})
			return
		}
		if r.Header.Get(HeaderSessionToken) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid session token"})
			return
		}
		var req cryptoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Action {
		case "encrypt":
			_ = json.NewEncoder(w).Encode(map[string]any{"ciphertext": "iv:tag:" + req.Text})
		case "decrypt":
			if req.Payload == "tampered" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "decrypt failed"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"plaintext": "secret123", "legacy": req.Payload == "legacy"})
		case "health":
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": true})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unknown action"})
		}
	}))
}

func TestRemote_Encrypt(t *testing.T) {
	srv := boundaryStub(t)
	defer srv.Close()

	r := NewRemote(srv.URL, "svc-secret")
	env, err := r.Encrypt(context.Background(), "hello", "tok")
	require.NoError(t, err)
	require.Equal(t, "iv:tag:hello", env)
}

func TestRemote_Decrypt_LegacyFlag(t *testing.T) {
	srv := boundaryStub(t)
	defer srv.Close()

	r := NewRemote(srv.URL, "svc-secret")

	plaintext, legacy, err := r.Decrypt(context.Background(), "iv:tag:ct", "tok")
	require.NoError(t, err)
	require.False(t, legacy)
	require.Equal(t, "secret123", plaintext)

	_, legacy, err = r.Decrypt(context.Background(), "legacy", "tok")
	require.NoError(t, err)
	require.True(t, legacy)
}

func TestRemote_Decrypt_IntegrityFailure(t *testing.T) {
	srv := boundaryStub(t)
	defer srv.Close()

	r := NewRemote(srv.URL, "svc-secret")
	_, _, err := r.Decrypt(context.Background(), "tampered", "tok")
	require.ErrorIs(t, err, errs.ErrCryptoFailed)
}

func TestRemote_BadSecret_Unauthorized(t *testing.T) {
	srv := boundaryStub(t)
	defer srv.Close()

	r := NewRemote(srv.URL, "wrong")
	_, err := r.Encrypt(context.Background(), "hello", "tok")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestRemote_MissingToken_Unauthorized(t *testing.T) {
	srv := boundaryStub(t)
	defer srv.Close()

	r := NewRemote(srv.URL, "svc-secret")
	_, err := r.Encrypt(context.Background(), "hello", "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestRemote_NonJSONErrorBody_StaysDiagnosable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>upstream timeout</html>"))
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "svc-secret")
	_, err := r.Encrypt(context.Background(), "hello", "tok")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
	require.Contains(t, err.Error(), "unreadable error body")
}

func TestRemote_Health(t *testing.T) {
	srv := boundaryStub(t)
	defer srv.Close()

	r := NewRemote(srv.URL, "svc-secret")
	require.NoError(t, r.Health(context.Background(), "tok"))
}
