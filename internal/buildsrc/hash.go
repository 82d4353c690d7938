package buildsrc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// hashFormat is mixed into every input hash so a change to the archive
// format invalidates old archives.
const hashFormat = "buildsrc-inputs-v1"

// hashInputs digests the relative path and content of every input file.
// Files are hashed concurrently; the combination is order independent of
// scheduling because files are sorted.
func hashInputs(ctx context.Context, base string, files []string, workers int) (string, error) {
	sums := make([][]byte, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := hashFile(f)
			if err != nil {
				return err
			}
			sums[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	h := sha256.New()
	io.WriteString(h, hashFormat)
	for i, f := range files {
		rel, err := filepath.Rel(base, f)
		if err != nil {
			return "", err
		}
		io.WriteString(h, "\x00"+filepath.ToSlash(rel)+"\x00")
		h.Write(sums[i])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
