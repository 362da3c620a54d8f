package columns

import "sync"

// OlympicSchema describes the olympic-winners dataset used by the demo page.
func OlympicSchema() Schema {
	return Schema{
		Fields: []FieldSpec{
			{Key: "athlete"},
			{Key: "age"},
			{Key: "country"},
			{Key: "year"},
			{Key: "sport"},
			{Key: "gold", GroupID: "medals", Show: "open"},
			{Key: "silver", GroupID: "medals", Show: "open"},
			{Key: "bronze", GroupID: "medals", Show: "open"},
		},
		Groups: []GroupSpec{
			{
				ID:           "medals",
				Label:        "Medals",
				DerivedField: "total",
				DerivedFrom:  []string{"gold", "silver", "bronze"},
			},
		},
	}
}

// PrimaryLabels keeps the field keys as headers.
func PrimaryLabels() Labels {
	return Labels{"medals": "Medals"}
}

// SecondaryLabels relabels the same fields for the lower view.
func SecondaryLabels() Labels {
	return Labels{
		"athlete": "Name",
		"age":     "Email",
		"country": "Job",
		"year":    "Experiance",
		"sport":   "Education",
		"medals":  "Skills",
	}
}

var defaultPair = sync.OnceValue(func() *Pair {
	pair, err := BuildPair(OlympicSchema(), PrimaryLabels(), SecondaryLabels())
	if err != nil {
		panic(err)
	}

	return pair
})

// Default returns the olympic column pair. Every call returns the same pointer.
func Default() *Pair {
	return defaultPair()
}
