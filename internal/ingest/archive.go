package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Extract unpacks every file of the zip archive at src into dir, overwriting
// existing files. It returns the written paths. Entries that would escape dir
// are rejected.
func Extract(src, dir string) ([]string, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive entry %q escapes %s", f.Name, dir)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		written = append(written, target)
	}
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// findFile returns the path among files whose base name equals name,
// ignoring case. Archive producers are not consistent about case.
func findFile(files []string, name string) (string, bool) {
	for _, f := range files {
		if strings.EqualFold(filepath.Base(f), name) {
			return f, true
		}
	}
	return "", false
}

// TranscodeFile decodes src from CP866 and writes it to dst as UTF-8,
// replacing dst if it exists.
func TranscodeFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if err := Transcode(out, in); err != nil {
		out.Close()
		return fmt.Errorf("transcode %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}

// Transcode copies r to w, decoding CP866 into UTF-8.
func Transcode(w io.Writer, r io.Reader) error {
	_, err := io.Copy(w, transform.NewReader(r, charmap.CodePage866.NewDecoder()))
	return err
}
