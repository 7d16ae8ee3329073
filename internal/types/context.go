package types

import (
	"fmt"
	"path"
	"strings"
)

// Context identifies where a workflow or component's canonical files live.
// Mount names a configured root and Path is the slash-separated location
// below it. Owner is carried along but does not identify the save target.
type Context struct {
	Mount string `yaml:"mount" json:"mount"`
	Path  string `yaml:"path" json:"path"`
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`
}

// ParseContext parses the "MOUNT:/some/path" form used on the command line.
func ParseContext(s string) (Context, error) {
	mount, p, ok := strings.Cut(s, ":")
	if !ok || mount == "" {
		return Context{}, fmt.Errorf("invalid context %q: want MOUNT:/path", s)
	}
	c := Context{Mount: mount, Path: p}
	if err := c.Validate(); err != nil {
		return Context{}, err
	}
	return c, nil
}

// Validate checks that the context names a mount and a non-root location.
func (c Context) Validate() error {
	if c.Mount == "" {
		return fmt.Errorf("context mount is required")
	}
	if c.CleanPath() == "/" {
		return fmt.Errorf("context path must name a location below the mount root")
	}
	return nil
}

// CleanPath returns the rooted, cleaned location. ".." segments cannot
// climb above the mount root.
func (c Context) CleanPath() string {
	return path.Clean("/" + strings.ReplaceAll(c.Path, "\\", "/"))
}

// Equal reports whether two contexts denote the same logical save target.
// A nil context equals only another nil context.
func (c *Context) Equal(other *Context) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Mount == other.Mount && c.CleanPath() == other.CleanPath()
}

// String renders the context in ParseContext form.
func (c Context) String() string {
	return c.Mount + ":" + c.CleanPath()
}
