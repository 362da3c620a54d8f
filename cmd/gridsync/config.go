package gridsync

import (
	"fmt"

	"github.com/dasdy/gridsync/columns"
	"github.com/spf13/viper"
)

// columnsFromConfig builds the column pair from the schema and labels sections of
// the config. Missing sections fall back to the olympic-winners defaults.
func columnsFromConfig(v *viper.Viper) (*columns.Pair, error) {
	if !v.IsSet("schema") && !v.IsSet("labels") {
		return columns.Default(), nil
	}

	schema := columns.OlympicSchema()
	primary := columns.PrimaryLabels()
	secondary := columns.SecondaryLabels()

	if v.IsSet("schema") {
		schema = columns.Schema{}
		if err := v.UnmarshalKey("schema", &schema); err != nil {
			return nil, fmt.Errorf("could not read schema from config: %w", err)
		}
	}

	if v.IsSet("labels.primary") {
		primary = columns.Labels(v.GetStringMapString("labels.primary"))
	}

	if v.IsSet("labels.secondary") {
		secondary = columns.Labels(v.GetStringMapString("labels.secondary"))
	}

	pair, err := columns.BuildPair(schema, primary, secondary)
	if err != nil {
		return nil, fmt.Errorf("invalid column config: %w", err)
	}

	return pair, nil
}
