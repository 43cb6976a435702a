package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Catalog errors.
var (
	ErrToolNotFound = errors.New("catalog: tool not found")
	ErrDuplicateID  = errors.New("catalog: duplicate tool id")
)

// Catalog is the loaded descriptor table, looked up by tool identifier.
type Catalog struct {
	byID map[string]*Descriptor
}

// New creates a catalog from descriptors.
func New(descriptors ...*Descriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := c.Register(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a descriptor to the table.
func (c *Catalog) Register(d *Descriptor) error {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return errors.New("catalog: tool id is required")
	}
	if _, exists := c.byID[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	if d.ExitPolicy == "" {
		d.ExitPolicy = ExitPolicyIgnore
	}
	c.byID[id] = d
	return nil
}

// Get returns the descriptor registered under id.
func (c *Catalog) Get(id string) (*Descriptor, error) {
	d, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	return d, nil
}

// List returns all descriptors sorted by identifier.
func (c *Catalog) List() []*Descriptor {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Descriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.byID[id])
	}
	return out
}
