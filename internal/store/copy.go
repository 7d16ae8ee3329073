package store

import (
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// Filter decides whether a file a node owns (path relative to the node
// folder, slash-separated) is carried over by a save-as. A nil Filter
// accepts everything.
type Filter func(relPath string) bool

// ExcludePrefixes returns a Filter rejecting files under any of the given
// relative directories, e.g. "data" to drop cached port data.
func ExcludePrefixes(prefixes ...string) Filter {
	return func(rel string) bool {
		for _, p := range prefixes {
			p = strings.Trim(p, "/")
			if rel == p || strings.HasPrefix(rel, p+"/") {
				return false
			}
		}
		return true
	}
}

// storeOwned reports whether a node-folder file is written by the store
// itself and therefore never copied.
func storeOwned(rel string) bool {
	return rel == NodeFile || rel == InternalsFile || strings.HasSuffix(rel, tmpSuffix)
}

// copyNodeExtras copies the files a node owns from src to dst, skipping
// store-owned files and anything filter rejects. It returns the number of
// files and bytes copied.
func copyNodeExtras(src, dst string, filter Filter) (int, int64, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return 0, 0, nil
	}

	type copyItem struct {
		rel   string
		isDir bool
		mode  iofs.FileMode
	}
	var items []copyItem
	var itemsMu sync.Mutex

	conf := &fastwalk.Config{Follow: false}
	err := fastwalk.Walk(conf, src, func(fullPath string, d iofs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, fullPath)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if storeOwned(rel) {
			return nil
		}
		if filter != nil && !filter(rel) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			return err
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil // Symlinks and devices are not part of a template
		}

		itemsMu.Lock()
		items = append(items, copyItem{rel: rel, isDir: info.IsDir(), mode: info.Mode()})
		itemsMu.Unlock()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	// Directories first, parents before children
	sort.Slice(items, func(i, j int) bool {
		if items[i].isDir != items[j].isDir {
			return items[i].isDir
		}
		return items[i].rel < items[j].rel
	})

	var files int
	var bytes int64
	for _, item := range items {
		target := filepath.Join(dst, filepath.FromSlash(item.rel))
		if item.isDir {
			if err := os.MkdirAll(target, item.mode.Perm()|0700); err != nil {
				return files, bytes, err
			}
			continue
		}
		n, err := copyFile(filepath.Join(src, filepath.FromSlash(item.rel)), target, item.mode)
		if err != nil {
			return files, bytes, err
		}
		files++
		bytes += n
	}
	return files, bytes, nil
}

func copyFile(src, dst string, mode iofs.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
