package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// EnvelopeKey is the data key holding the ciphertext of an encrypted state.
const EnvelopeKey = "__encrypted__"

// ErrNotEncrypted is returned when a stored run has no encrypted envelope.
var ErrNotEncrypted = errors.New("run state is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new records. Must be 32 bytes (AES-256).
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt a record,
	// so keys can be rotated without rewriting stored runs.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.RunStore
	config EncryptionConfig
}

// NewEncryption returns a middleware that seals each run's state with AES-GCM.
// Run metadata (id, graph, status, timestamps, error) stays readable; input, data and
// logs are only visible through the middleware.
func NewEncryption(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256), got %d", i, len(k))
		}
	}
	return func(next ports.RunStore) ports.RunStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) SaveRun(ctx context.Context, run *domain.Run) error {
	sealed, err := m.seal(run)
	if err != nil {
		return err
	}
	return m.next.SaveRun(ctx, sealed)
}

func (m *encryptionMiddleware) FinalizeRun(ctx context.Context, run *domain.Run) error {
	sealed, err := m.seal(run)
	if err != nil {
		return err
	}
	return m.next.FinalizeRun(ctx, sealed)
}

func (m *encryptionMiddleware) LoadRun(ctx context.Context, id string) (*domain.Run, error) {
	run, err := m.next.LoadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.open(run)
}

func (m *encryptionMiddleware) ListRuns(ctx context.Context) ([]string, error) {
	return m.next.ListRuns(ctx)
}

func (m *encryptionMiddleware) seal(run *domain.Run) (*domain.Run, error) {
	if run.State == nil {
		return run, nil
	}

	plainText, err := json.Marshal(run.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt state: %w", err)
	}

	envelope := *run
	envelope.State = &domain.State{
		Data:   domain.Data{EnvelopeKey: domain.String(base64.StdEncoding.EncodeToString(ciphertext))},
		Logs:   []string{},
		Status: run.State.Status,
	}
	return &envelope, nil
}

func (m *encryptionMiddleware) open(run *domain.Run) (*domain.Run, error) {
	if run.State == nil {
		return run, nil
	}

	encoded, ok := run.State.Data.String(EnvelopeKey)
	if !ok {
		return nil, fmt.Errorf("run %s: %w", run.ID, ErrNotEncrypted)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt state of run %s: %w", run.ID, err)
	}

	var state domain.State
	if err := json.Unmarshal(plainText, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted state: %w", err)
	}
	if state.Data == nil {
		state.Data = make(domain.Data)
	}
	if state.Logs == nil {
		state.Logs = []string{}
	}
	run.State = &state
	return run, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
