package filerepo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/session"
	"golang.org/x/crypto/chacha20poly1305"
)

var _ session.Repo = (*FileSessionRepo)(nil)

// FileSessionRepo stores the session as JSON in a single file. When a key is
// configured the file is sealed with XChaCha20-Poly1305.
type FileSessionRepo struct {
	path string
	key  []byte
	lock sync.Mutex
}

// New returns a repo writing to path. hexKey may be empty to store the session
// unsealed; otherwise it must decode to 32 bytes.
func New(path, hexKey string) (*FileSessionRepo, error) {
	r := &FileSessionRepo{path: path}
	if hexKey == "" {
		return r, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("[filerepo New] %w: need %d hex encoded bytes", clienterrors.ErrInvalidSessionKey, chacha20poly1305.KeySize)
	}
	r.key = key
	return r, nil
}

func (r *FileSessionRepo) Load(_ context.Context) (*session.Session, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, clienterrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[filerepo Load] reading %s: %w", r.path, err)
	}

	if r.key != nil {
		if data, err = r.open(data); err != nil {
			return nil, err
		}
	}

	s := &session.Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("[filerepo Load] decoding session: %w", err)
	}
	return s, nil
}

func (r *FileSessionRepo) Save(_ context.Context, s *session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("[filerepo Save] encoding session: %w", err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.key != nil {
		if data, err = r.seal(data); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("[filerepo Save] creating dir: %w", err)
	}

	// write then rename so a crash never leaves a half written session
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("[filerepo Save] writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("[filerepo Save] renaming %s: %w", tmp, err)
	}
	return nil
}

func (r *FileSessionRepo) Delete(_ context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("[filerepo Delete] removing %s: %w", r.path, err)
	}
	return nil
}

func (r *FileSessionRepo) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(r.key)
	if err != nil {
		return nil, fmt.Errorf("[filerepo seal] %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("[filerepo seal] nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func (r *FileSessionRepo) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(r.key)
	if err != nil {
		return nil, fmt.Errorf("[filerepo open] %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, clienterrors.ErrSessionSealed
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("[filerepo open] %w: %w", clienterrors.ErrSessionSealed, err)
	}
	return plain, nil
}
