package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DiskStore is a development implementation of Store writing uploads under
// a local directory. Production deployments swap in the real blob service.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

var _ Store = (*DiskStore)(nil)

func (s *DiskStore) Put(_ context.Context, name string, r io.Reader) (string, error) {
	ref := uuid.New().String() + filepath.Ext(name)
	f, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", fmt.Errorf("blob: create: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("blob: write: %w", err)
	}
	return ref, nil
}
