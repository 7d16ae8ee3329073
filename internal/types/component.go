package types

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
)

// Directory is the on-disk root of a saved component.
type Directory struct {
	Root string `yaml:"root" json:"root"`
}

// IsZero reports whether the component has never been saved.
func (d Directory) IsZero() bool {
	return d.Root == ""
}

// Node is a child node of a component.
type Node struct {
	ID         int               `yaml:"id" json:"id" validate:"gt=0"`
	Name       string            `yaml:"name" json:"name" validate:"required,max=200"`
	Kind       string            `yaml:"kind" json:"kind" validate:"required,node_kind"`
	Settings   map[string]string `yaml:"settings,omitempty" json:"settings,omitempty" validate:"dive,keys,setting_key,endkeys"`
	Annotation string            `yaml:"annotation,omitempty" json:"annotation,omitempty" validate:"max=4000"`

	// Internals is opaque node state, stored encoded next to node.yaml.
	Internals map[string]any `yaml:"-" json:"internals,omitempty"`
}

// Connection links an output port of one node to an input port of another.
type Connection struct {
	Source     int `yaml:"source" json:"source" validate:"gt=0"`
	SourcePort int `yaml:"source_port" json:"source_port" validate:"gte=0"`
	Dest       int `yaml:"dest" json:"dest" validate:"gt=0"`
	DestPort   int `yaml:"dest_port" json:"dest_port" validate:"gte=0"`
}

// Component is a workflow subgraph saved as a reusable template.
// Context and Directory are unset until the first save.
type Component struct {
	TemplateID  string       `yaml:"template_id" json:"template_id"`
	Name        string       `yaml:"name" json:"name" validate:"required,max=200"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	ParentID    string       `yaml:"parent_id" json:"parent_id" validate:"required"`
	Nodes       []*Node      `yaml:"nodes" json:"nodes" validate:"dive,required"`
	Connections []Connection `yaml:"connections,omitempty" json:"connections,omitempty" validate:"dive"`

	Context   *Context  `yaml:"-" json:"context,omitempty"`
	Directory Directory `yaml:"-" json:"directory"`
}

// NewComponent creates an unsaved component with a fresh template ID.
func NewComponent(name, parentID string) *Component {
	return &Component{
		TemplateID: uuid.NewString(),
		Name:       name,
		ParentID:   parentID,
	}
}

// AddNode adds a child node. Node IDs are unique within a component.
func (c *Component) AddNode(n *Node) error {
	if c.Node(n.ID) != nil {
		return fmt.Errorf("node %d already exists", n.ID)
	}
	c.Nodes = append(c.Nodes, n)
	return nil
}

// RemoveNode removes a child node and every connection touching it.
func (c *Component) RemoveNode(id int) bool {
	for i, n := range c.Nodes {
		if n.ID != id {
			continue
		}
		c.Nodes = append(c.Nodes[:i], c.Nodes[i+1:]...)
		kept := c.Connections[:0]
		for _, conn := range c.Connections {
			if conn.Source != id && conn.Dest != id {
				kept = append(kept, conn)
			}
		}
		c.Connections = kept
		return true
	}
	return false
}

// Node returns the child node with the given ID, or nil.
func (c *Component) Node(id int) *Node {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// SortedNodes returns the child nodes ordered by ID.
func (c *Component) SortedNodes() []*Node {
	nodes := make([]*Node, len(c.Nodes))
	copy(nodes, c.Nodes)
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// Relocation describes a completed relocating save. It is returned by the
// save and applied by the caller; nothing else mutates the component.
type Relocation struct {
	From     *Context `json:"from,omitempty"`
	To       Context  `json:"to"`
	FromRoot string   `json:"from_root,omitempty"`
	ToRoot   string   `json:"to_root"`
}

// Apply moves the component to the relocation's target. A nil relocation
// is a no-op. A relocation computed against a different location than the
// component's current one is refused.
func (c *Component) Apply(r *Relocation) error {
	if r == nil {
		return nil
	}
	if !c.Context.Equal(r.From) || filepath.Clean(c.Directory.Root) != filepath.Clean(r.FromRoot) {
		return serrors.ContractViolation("relocation does not start at the component's current location").
			WithDetail("component", c.Name)
	}
	to := r.To
	c.Context = &to
	c.Directory = Directory{Root: r.ToRoot}
	return nil
}
