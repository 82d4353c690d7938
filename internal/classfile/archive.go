package classfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/vk/buildcp/internal/fsutil"
)

const manifestEntry = "META-INF/MANIFEST.MF"

// entryTime is stamped on every archive entry so identical classes always
// produce byte-identical archives.
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// WriteArchive writes classes as a jar. The comment is stored as the zip
// archive comment and can be read back with ArchiveComment.
func WriteArchive(w io.Writer, classes []*Class, comment string) error {
	sorted := make([]*Class, len(classes))
	copy(sorted, classes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	zw := zip.NewWriter(w)
	if err := writeEntry(zw, manifestEntry, []byte("Manifest-Version: 1.0\r\n\r\n")); err != nil {
		return err
	}
	for _, c := range sorted {
		data, err := Encode(c)
		if err != nil {
			return err
		}
		if err := writeEntry(zw, EntryName(c.Name), data); err != nil {
			return err
		}
	}
	if err := zw.SetComment(comment); err != nil {
		return fmt.Errorf("setting archive comment: %w", err)
	}
	return zw.Close()
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	f, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating archive entry %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing archive entry %s: %w", name, err)
	}
	return nil
}

// ReadArchive indexes every class in a jar.
func ReadArchive(path string) (*Index, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	defer zr.Close()

	var classes []*Class
	for _, f := range zr.File {
		if _, ok := NameFromEntry(f.Name); !ok {
			continue
		}
		c, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s!%s: %w", path, f.Name, err)
		}
		classes = append(classes, c)
	}
	return NewIndex(path, classes), nil
}

func readEntry(f *zip.File) (*Class, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// ArchiveComment returns the zip comment of an archive.
func ArchiveComment(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()
	return zr.Comment, nil
}

// ReadDir indexes every class file below a class directory.
func ReadDir(dir string) (*Index, error) {
	files, err := fsutil.FindFilesByExtension(dir, Extension)
	if err != nil {
		return nil, fmt.Errorf("scanning class directory %s: %w", dir, err)
	}
	classes := make([]*Class, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading class file %s: %w", f, err)
		}
		c, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("reading class file %s: %w", f, err)
		}
		classes = append(classes, c)
	}
	return NewIndex(dir, classes), nil
}

// WriteDir writes classes as individual class files below dir.
func WriteDir(dir string, classes []*Class) error {
	for _, c := range classes {
		data, err := Encode(c)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, filepath.FromSlash(EntryName(c.Name)))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
