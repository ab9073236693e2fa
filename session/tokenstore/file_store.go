package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/session"
)

var _ session.TokenStore = (*FileStore)(nil)

// FileStore keeps the access token as plain text in a file, the CLI
// equivalent of the browser auth cookie.
type FileStore struct {
	path string
	lock sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) GetToken(_ context.Context) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", clienterrors.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[tokenstore GetToken] reading %s: %w", f.path, err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", clienterrors.ErrTokenNotFound
	}
	return token, nil
}

func (f *FileStore) SetToken(_ context.Context, token string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("[tokenstore SetToken] creating dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("[tokenstore SetToken] writing %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) DeleteToken(_ context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("[tokenstore DeleteToken] removing %s: %w", f.path, err)
	}
	return nil
}
