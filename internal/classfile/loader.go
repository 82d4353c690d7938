package classfile

import (
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Loader indexes classpath containers and memoises archive indexes. An
// archive is re-read when its size or modification time changes; directories
// are always re-read since nested changes do not touch the directory itself.
type Loader struct {
	archives *lru.Cache[string, *Index]
}

// NewLoader creates a loader that keeps up to size archive indexes.
func NewLoader(size int) (*Loader, error) {
	cache, err := lru.New[string, *Index](size)
	if err != nil {
		return nil, err
	}
	return &Loader{archives: cache}, nil
}

// Load returns the index of a jar or class directory.
func (l *Loader) Load(path string) (*Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return ReadDir(path)
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if idx, ok := l.archives.Get(key); ok {
		return idx, nil
	}
	idx, err := ReadArchive(path)
	if err != nil {
		return nil, err
	}
	l.archives.Add(key, idx)
	return idx, nil
}
