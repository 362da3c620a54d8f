package model

import "fmt"

// Key identifies a column, field or column group.
type Key string

// GroupShow controls when a column inside a group is displayed.
type GroupShow int

const (
	// Always displayed regardless of the group's open state.
	ShowAlways GroupShow = iota
	// Displayed only while the group is collapsed.
	ShowClosed
	// Displayed only while the group is expanded.
	ShowOpen
)

func (s GroupShow) String() string {
	switch s {
	case ShowClosed:
		return "closed"
	case ShowOpen:
		return "open"
	default:
		return "always"
	}
}

// DisplayedWhen reports whether a column with this show mode is displayed for the given group state.
func (s GroupShow) DisplayedWhen(groupOpen bool) bool {
	switch s {
	case ShowClosed:
		return !groupOpen
	case ShowOpen:
		return groupOpen
	default:
		return true
	}
}

// Row is a single record of the dataset. Rows are never mutated after decoding.
type Row map[string]any

type Column struct {
	ID         Key
	Field      string
	HeaderName string
	Show       GroupShow
	// SumOf lists row fields whose numeric values are added up for derived columns.
	SumOf []string
}

// Header returns the header text, falling back to the column key.
func (c *Column) Header() string {
	if c.HeaderName != "" {
		return c.HeaderName
	}

	if c.Field != "" {
		return c.Field
	}

	return string(c.ID)
}

// Derived reports whether the column value is computed instead of read from the row.
func (c *Column) Derived() bool {
	return c.Field == "" && len(c.SumOf) > 0
}

// Value extracts the cell value for the row.
func (c *Column) Value(row Row) any {
	if !c.Derived() {
		return row[c.Field]
	}

	total := 0.0

	for _, f := range c.SumOf {
		switch v := row[f].(type) {
		case float64:
			total += v
		case int:
			total += float64(v)
		case int64:
			total += float64(v)
		}
	}

	return total
}

type Group struct {
	ID         Key
	HeaderName string
	Children   []Column
}

func (g *Group) Header() string {
	if g.HeaderName != "" {
		return g.HeaderName
	}

	return string(g.ID)
}

// Node is either a plain column or a column group. Exactly one field is set.
type Node struct {
	Column *Column
	Group  *Group
}

func (n Node) Key() Key {
	if n.Group != nil {
		return n.Group.ID
	}

	return n.Column.ID
}

func (n Node) Header() string {
	if n.Group != nil {
		return n.Group.Header()
	}

	return n.Column.Header()
}

func (n Node) IsGroup() bool {
	return n.Group != nil
}

// Tree is an ordered column definition for one view.
type Tree []Node

// Role names the two views of a pair.
type Role int

const (
	Primary Role = iota
	Secondary
)

func (r Role) String() string {
	if r == Secondary {
		return "secondary"
	}

	return "primary"
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, error) {
	switch s {
	case "primary":
		return Primary, nil
	case "secondary":
		return Secondary, nil
	default:
		return Primary, fmt.Errorf("unknown view role %q", s)
	}
}

// Other returns the peer role.
func (r Role) Other() Role {
	if r == Primary {
		return Secondary
	}

	return Primary
}
