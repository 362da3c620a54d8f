package columns

import (
	"fmt"
	"slices"

	"github.com/dasdy/gridsync/model"
)

// TopLevelKeys returns the keys of the tree's top-level nodes in order.
func TopLevelKeys(tree model.Tree) []model.Key {
	keys := make([]model.Key, 0, len(tree))
	for _, n := range tree {
		keys = append(keys, n.Key())
	}

	return keys
}

// ColumnKeys returns every leaf column key in display order, including derived columns.
func ColumnKeys(tree model.Tree) []model.Key {
	keys := make([]model.Key, 0, len(tree))

	for _, n := range tree {
		if n.Group == nil {
			keys = append(keys, n.Column.ID)

			continue
		}

		for _, c := range n.Group.Children {
			keys = append(keys, c.ID)
		}
	}

	return keys
}

// ToggleableField is a column the control surface can show or hide.
type ToggleableField struct {
	Key    model.Key
	Header string
	// Group is the header of the enclosing group, empty for top-level fields.
	Group string
}

// ToggleableFields lists every column backed by a row field, top-level ones and group
// children alike, in display order. Derived columns are left out.
func ToggleableFields(tree model.Tree) []ToggleableField {
	fields := make([]ToggleableField, 0, len(tree))

	for _, n := range tree {
		if n.Group == nil {
			if n.Column.Field != "" {
				fields = append(fields, ToggleableField{Key: n.Column.ID, Header: n.Column.Header()})
			}

			continue
		}

		for i := range n.Group.Children {
			c := &n.Group.Children[i]
			if c.Field != "" {
				fields = append(fields, ToggleableField{Key: c.ID, Header: c.Header(), Group: n.Group.Header()})
			}
		}
	}

	return fields
}

// FindColumn looks up a leaf column by key. The returned group is nil for top-level columns.
func FindColumn(tree model.Tree, key model.Key) (*model.Column, *model.Group, bool) {
	for _, n := range tree {
		if n.Group == nil {
			if n.Column.ID == key {
				return n.Column, nil, true
			}

			continue
		}

		for i := range n.Group.Children {
			if n.Group.Children[i].ID == key {
				return &n.Group.Children[i], n.Group, true
			}
		}
	}

	return nil, nil, false
}

// Groups returns the column groups of the tree in order.
func Groups(tree model.Tree) []*model.Group {
	var groups []*model.Group

	for _, n := range tree {
		if n.Group != nil {
			groups = append(groups, n.Group)
		}
	}

	return groups
}

// Parallel checks that two trees have the same shape: equal top-level keys, node
// kinds, child keys and show modes. Header labels are ignored.
func Parallel(a, b model.Tree) error {
	if !slices.Equal(TopLevelKeys(a), TopLevelKeys(b)) {
		return fmt.Errorf("%w: top-level keys %v vs %v", ErrNotParallel, TopLevelKeys(a), TopLevelKeys(b))
	}

	for i := range a {
		if a[i].IsGroup() != b[i].IsGroup() {
			return fmt.Errorf("%w: node %s is a group in only one tree", ErrNotParallel, a[i].Key())
		}

		if !a[i].IsGroup() {
			if a[i].Column.Field != b[i].Column.Field {
				return fmt.Errorf("%w: column %s reads different fields", ErrNotParallel, a[i].Key())
			}

			continue
		}

		ca, cb := a[i].Group.Children, b[i].Group.Children
		if len(ca) != len(cb) {
			return fmt.Errorf("%w: group %s has %d vs %d children", ErrNotParallel, a[i].Key(), len(ca), len(cb))
		}

		for j := range ca {
			if ca[j].ID != cb[j].ID || ca[j].Show != cb[j].Show || ca[j].Field != cb[j].Field {
				return fmt.Errorf("%w: group %s child %d differs (%s vs %s)", ErrNotParallel, a[i].Key(), j, ca[j].ID, cb[j].ID)
			}
		}
	}

	return nil
}
