package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore implements core.ArtifactPublisher by copying files under a
// directory. Keys map to relative paths.
type LocalStore struct {
	Root string
}

// Publish copies localPath to Root/key, creating directories as needed.
func (s LocalStore) Publish(ctx context.Context, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(s.Root, filepath.FromSlash(ObjectKey("", key)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
