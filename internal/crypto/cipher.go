package crypto

import "context"

// Cipher is the crypto boundary as seen by the sync engine. Every call carries
// the session token that authorizes it; the master key never crosses this
// interface. The production implementation is network-backed (RemoteCipher);
// Local holds the key in process for single-binary deployments and tests.
type Cipher interface {
	// Encrypt returns the envelope for plaintext.
	Encrypt(ctx context.Context, plaintext, sessionToken string) (string, error)
	// Decrypt opens an envelope. The legacy flag reports the base64 fallback path.
	Decrypt(ctx context.Context, payload, sessionToken string) (plaintext string, legacy bool, err error)
	// Health runs the boundary self-test.
	Health(ctx context.Context, sessionToken string) error
}

// Local is an in-process Cipher holding the imported master key. The key is
// set once at construction and read-only afterwards, safe for concurrent use.
type Local struct {
	key []byte
}

// NewLocal imports a hex-encoded master key and returns an in-process cipher.
func NewLocal(hexKey string) (*Local, error) {
	key, err := ParseMasterKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Local{key: key}, nil
}

func (l *Local) Encrypt(_ context.Context, plaintext, _ string) (string, error) {
	return Seal(l.key, plaintext)
}

func (l *Local) Decrypt(_ context.Context, payload, _ string) (string, bool, error) {
	out, err := Open(l.key, payload)
	if err != nil {
		return "", false, err
	}
	return out.Plaintext, out.Legacy, nil
}

func (l *Local) Health(_ context.Context, _ string) error {
	return SelfTest(l.key)
}
