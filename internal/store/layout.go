package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const maxFolderNameRunes = 100

// nodeFolderPattern matches folder names written for child nodes.
var nodeFolderPattern = regexp.MustCompile(` \(#(\d+)\)$`)

// FolderName returns the folder a node is saved to on first save:
// "<sanitized name> (#<id>)".
func FolderName(id int, name string) string {
	return sanitizeName(name) + " (#" + strconv.Itoa(id) + ")"
}

// folderNodeID extracts the node ID from a node folder name.
func folderNodeID(folder string) (int, bool) {
	m := nodeFolderPattern.FindStringSubmatch(folder)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	return id, err == nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	s := strings.Trim(b.String(), " .")
	if runes := []rune(s); len(runes) > maxFolderNameRunes {
		s = strings.TrimRight(string(runes[:maxFolderNameRunes]), " .")
	}
	if s == "" {
		return "Node"
	}
	return s
}

// chooseFolder decides where a node goes on an in-place save. A node keeps
// its previous folder when the desired name differs only in case;
// otherwise it moves to the desired name.
func chooseFolder(prev, desired string) (folder string, rename bool) {
	switch {
	case prev == "":
		return desired, false
	case strings.EqualFold(prev, desired):
		return prev, false
	default:
		return desired, true
	}
}

// copyFolder prepares a renamed node's folder: next is cleared of any
// leftover from an interrupted save and receives a copy of the files in
// prev. The store rewrites the node's own files afterwards. A missing
// previous folder leaves next empty.
func copyFolder(root, prev, next string) error {
	to := filepath.Join(root, next)
	if err := os.RemoveAll(to); err != nil {
		return err
	}
	if err := os.MkdirAll(to, 0755); err != nil {
		return err
	}
	_, _, err := copyNodeExtras(filepath.Join(root, prev), to, nil)
	return err
}

// removeObsolete deletes node folders under root that are not in keep.
// Non-node entries are left alone.
func removeObsolete(root string, keep map[string]bool) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || keep[entry.Name()] {
			continue
		}
		if _, ok := folderNodeID(entry.Name()); !ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
