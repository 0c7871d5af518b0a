package cube

import (
	"strings"

	"hermannm.dev/wrap"
)

// Space is a named fact table: a set of measures sharing a set of dimensions.
type Space struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Measure is a named aggregatable value within a space.
type Measure struct {
	Space Space
	Name  string
	Label string
}

const qualifiedNameSeparator = "."

// QualifiedName identifies the measure across spaces, e.g. "sales.amount".
func (measure Measure) QualifiedName() string {
	return measure.Space.Name + qualifiedNameSeparator + measure.Name
}

// FullName is the human-readable name, e.g. "Sales / Amount".
func (measure Measure) FullName() string {
	return measure.Space.Label + " / " + measure.Label
}

// SplitQualifiedName splits "space.measure" on its first separator.
func SplitQualifiedName(qualifiedName string) (space string, measure string, err error) {
	space, measure, found := strings.Cut(qualifiedName, qualifiedNameSeparator)
	if !found || space == "" || measure == "" {
		return "", "", wrap.Errorf(
			ErrUnknownMeasure,
			"'%s' is not a qualified measure name of the form 'space.measure'",
			qualifiedName,
		)
	}
	return space, measure, nil
}

// Dimension is the schema of a hierarchical axis. Levels are ordered from coarsest to finest, and
// the depth of the hierarchy is the number of levels.
type Dimension struct {
	Name   string   `json:"name"`
	Label  string   `json:"label"`
	Levels []string `json:"levels"`
}

func (dimension Dimension) Depth() int {
	return len(dimension.Levels)
}

func (dimension Dimension) Clone() Dimension {
	clone := dimension
	clone.Levels = append([]string(nil), dimension.Levels...)
	return clone
}

// WithLevels returns a copy of the dimension with the given levels.
func (dimension Dimension) WithLevels(levels []string) Dimension {
	clone := dimension
	clone.Levels = append([]string(nil), levels...)
	return clone
}

// Child is one coordinate returned by a drill: the last element of its value path, plus a label.
// It is encoded as a JSON pair [value, label].
type Child struct {
	Value string
	Label string
}
