// Package columns builds the structurally parallel column trees of a view pair.
package columns

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dasdy/gridsync/model"
)

var (
	ErrEmptyKey     = errors.New("column key is empty")
	ErrDuplicateKey = errors.New("duplicate column key")
	ErrUnknownGroup = errors.New("unknown column group")
	ErrNotParallel  = errors.New("column trees are not parallel")
)

// FieldSpec describes one logical field. GroupID places the field inside a group.
type FieldSpec struct {
	Key     string `mapstructure:"key"`
	GroupID string `mapstructure:"group"`
	// Show is "always", "open" or "closed". Fields inside a group default to "open".
	Show string `mapstructure:"show"`
}

// GroupSpec describes a column group. When DerivedField is set, the group gets a
// summary column shown while collapsed, summing DerivedFrom.
type GroupSpec struct {
	ID           string   `mapstructure:"id"`
	Label        string   `mapstructure:"label"`
	DerivedField string   `mapstructure:"derived"`
	DerivedFrom  []string `mapstructure:"derived-from"`
}

type Schema struct {
	Fields []FieldSpec `mapstructure:"fields"`
	Groups []GroupSpec `mapstructure:"groups"`
}

// Labels maps field or group keys to header text for one view.
type Labels map[string]string

// Pair holds the column trees of the primary and secondary views.
type Pair struct {
	Primary   model.Tree
	Secondary model.Tree
}

func parseShow(s string, grouped bool) (model.GroupShow, error) {
	switch s {
	case "":
		if grouped {
			return model.ShowOpen, nil
		}

		return model.ShowAlways, nil
	case "always":
		return model.ShowAlways, nil
	case "open":
		return model.ShowOpen, nil
	case "closed":
		return model.ShowClosed, nil
	default:
		return model.ShowAlways, fmt.Errorf("unknown show mode %q", s)
	}
}

// Build turns a schema into a column tree using the provided header labels.
// Groups appear at the position of their first field.
func Build(schema Schema, labels Labels) (model.Tree, error) {
	groups := make(map[string]*model.Group, len(schema.Groups))
	seen := make(map[string]struct{})

	claim := func(key string) error {
		if key == "" {
			return ErrEmptyKey
		}

		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}

		seen[key] = struct{}{}

		return nil
	}

	for _, gs := range schema.Groups {
		if err := claim(gs.ID); err != nil {
			return nil, fmt.Errorf("group: %w", err)
		}

		g := &model.Group{ID: model.Key(gs.ID), HeaderName: labelFor(labels, gs.ID, gs.Label)}

		if gs.DerivedField != "" {
			if err := claim(gs.DerivedField); err != nil {
				return nil, fmt.Errorf("derived field of group %s: %w", gs.ID, err)
			}

			g.Children = append(g.Children, model.Column{
				ID:         model.Key(gs.DerivedField),
				HeaderName: labels[gs.DerivedField],
				Show:       model.ShowClosed,
				SumOf:      slices.Clone(gs.DerivedFrom),
			})
		}

		groups[gs.ID] = g
	}

	tree := make(model.Tree, 0, len(schema.Fields))
	placed := make(map[string]bool, len(groups))

	for _, fs := range schema.Fields {
		if err := claim(fs.Key); err != nil {
			return nil, fmt.Errorf("field: %w", err)
		}

		show, err := parseShow(fs.Show, fs.GroupID != "")
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fs.Key, err)
		}

		col := model.Column{
			ID:         model.Key(fs.Key),
			Field:      fs.Key,
			HeaderName: labels[fs.Key],
			Show:       show,
		}

		if fs.GroupID == "" {
			col.Show = model.ShowAlways
			tree = append(tree, model.Node{Column: &col})

			continue
		}

		g, ok := groups[fs.GroupID]
		if !ok {
			return nil, fmt.Errorf("field %s: %w: %s", fs.Key, ErrUnknownGroup, fs.GroupID)
		}

		g.Children = append(g.Children, col)

		if !placed[fs.GroupID] {
			placed[fs.GroupID] = true

			tree = append(tree, model.Node{Group: g})
		}
	}

	// Groups without fields still render (e.g. only a derived column).
	for _, gs := range schema.Groups {
		if !placed[gs.ID] {
			tree = append(tree, model.Node{Group: groups[gs.ID]})
		}
	}

	return tree, nil
}

func labelFor(labels Labels, key, fallback string) string {
	if l, ok := labels[key]; ok {
		return l
	}

	return fallback
}

// BuildPair builds both view trees and checks that they are parallel.
func BuildPair(schema Schema, primary, secondary Labels) (*Pair, error) {
	top, err := Build(schema, primary)
	if err != nil {
		return nil, fmt.Errorf("primary columns: %w", err)
	}

	bottom, err := Build(schema, secondary)
	if err != nil {
		return nil, fmt.Errorf("secondary columns: %w", err)
	}

	if err := Parallel(top, bottom); err != nil {
		return nil, err
	}

	return &Pair{Primary: top, Secondary: bottom}, nil
}
