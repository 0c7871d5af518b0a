package db

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"hermannm.dev/cube/cube"
	"hermannm.dev/wrap"
)

// Schema maps the spaces of a cube to the tables and columns that store them.
type Schema struct {
	Spaces []SpaceSchema `yaml:"spaces"`
}

type SpaceSchema struct {
	Name       string            `yaml:"name"`
	Label      string            `yaml:"label"`
	Table      string            `yaml:"table"`
	Measures   []MeasureSchema   `yaml:"measures"`
	Dimensions []DimensionSchema `yaml:"dimensions"`
}

type MeasureSchema struct {
	Name        string          `yaml:"name"`
	Label       string          `yaml:"label"`
	Column      string          `yaml:"column"`
	Aggregation AggregationKind `yaml:"aggregation"`
}

type DimensionSchema struct {
	Name   string        `yaml:"name"`
	Label  string        `yaml:"label"`
	Levels []LevelSchema `yaml:"levels"`
}

// LevelSchema is one level of a dimension hierarchy, stored in its own column.
type LevelSchema struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
}

func ReadSchema(path string) (Schema, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, wrap.Errorf(err, "failed to read cube schema file '%s'", path)
	}

	schema, err := ParseSchema(bytes)
	if err != nil {
		return Schema{}, wrap.Errorf(err, "invalid cube schema in '%s'", path)
	}
	return schema, nil
}

// ParseSchema parses and validates a YAML schema. Labels default to names, columns default to
// names, and aggregations default to SUM.
func ParseSchema(bytes []byte) (Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(bytes, &schema); err != nil {
		return Schema{}, wrap.Error(err, "failed to parse cube schema")
	}

	schema.applyDefaults()

	if errs := schema.Validate(); len(errs) > 0 {
		return Schema{}, wrap.Errors("invalid cube schema", errs...)
	}
	return schema, nil
}

func (schema *Schema) applyDefaults() {
	for i := range schema.Spaces {
		space := &schema.Spaces[i]
		space.Label = withDefault(space.Label, space.Name)
		space.Table = withDefault(space.Table, space.Name)

		for j := range space.Measures {
			measure := &space.Measures[j]
			measure.Label = withDefault(measure.Label, measure.Name)
			measure.Column = withDefault(measure.Column, measure.Name)
			if measure.Aggregation == 0 {
				measure.Aggregation = AggregationSum
			}
		}

		for j := range space.Dimensions {
			dimension := &space.Dimensions[j]
			dimension.Label = withDefault(dimension.Label, dimension.Name)
			for k := range dimension.Levels {
				level := &dimension.Levels[k]
				level.Column = withDefault(level.Column, level.Name)
			}
		}
	}
}

func withDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (schema Schema) Validate() []error {
	var errs []error

	if len(schema.Spaces) == 0 {
		errs = append(errs, fmt.Errorf("schema has no spaces"))
	}

	spaceNames := make(map[string]struct{}, len(schema.Spaces))
	for i, space := range schema.Spaces {
		if space.Name == "" {
			errs = append(errs, fmt.Errorf("space %d has no name", i))
			continue
		}
		if _, duplicate := spaceNames[space.Name]; duplicate {
			errs = append(errs, fmt.Errorf("space name '%s' is used more than once", space.Name))
		}
		spaceNames[space.Name] = struct{}{}

		for j, measure := range space.Measures {
			if measure.Name == "" {
				errs = append(errs, fmt.Errorf("measure %d of space '%s' has no name", j, space.Name))
			}
			if !measure.Aggregation.IsValid() {
				errs = append(errs, fmt.Errorf(
					"measure '%s.%s' has invalid aggregation", space.Name, measure.Name,
				))
			}
		}

		for j, dimension := range space.Dimensions {
			if dimension.Name == "" {
				errs = append(errs, fmt.Errorf("dimension %d of space '%s' has no name", j, space.Name))
			}
			if len(dimension.Levels) == 0 {
				errs = append(errs, fmt.Errorf(
					"dimension '%s' of space '%s' has no levels", dimension.Name, space.Name,
				))
			}
		}
	}

	return errs
}

// Info describes the cube's spaces for clients.
func (schema Schema) Info() cube.Info {
	info := cube.Info{Spaces: make([]cube.SpaceInfo, len(schema.Spaces))}

	for i, space := range schema.Spaces {
		spaceInfo := cube.SpaceInfo{
			Name:       space.Name,
			Label:      space.Label,
			Measures:   make([]cube.MeasureInfo, len(space.Measures)),
			Dimensions: make([]cube.Dimension, len(space.Dimensions)),
		}

		for j, measure := range space.Measures {
			spaceInfo.Measures[j] = cube.MeasureInfo{Name: measure.Name, Label: measure.Label}
		}
		for j, dimension := range space.Dimensions {
			spaceInfo.Dimensions[j] = dimension.Dimension()
		}

		info.Spaces[i] = spaceInfo
	}

	return info
}

func (schema Schema) Space(name string) (SpaceSchema, error) {
	for _, space := range schema.Spaces {
		if space.Name == name {
			return space, nil
		}
	}
	return SpaceSchema{}, wrap.Errorf(cube.ErrUnknownSpace, "no space named '%s'", name)
}

func (space SpaceSchema) Measure(name string) (MeasureSchema, error) {
	for _, measure := range space.Measures {
		if measure.Name == name {
			return measure, nil
		}
	}
	return MeasureSchema{}, wrap.Errorf(
		cube.ErrUnknownMeasure, "space '%s' has no measure named '%s'", space.Name, name,
	)
}

func (space SpaceSchema) Dimension(name string) (DimensionSchema, error) {
	for _, dimension := range space.Dimensions {
		if dimension.Name == name {
			return dimension, nil
		}
	}
	return DimensionSchema{}, wrap.Errorf(
		cube.ErrUnknownDimension, "space '%s' has no dimension named '%s'", space.Name, name,
	)
}

// Columns returns every column of the space's table: level columns first, then measure columns.
func (space SpaceSchema) Columns() (levelColumns []string, measureColumns []string) {
	seen := make(map[string]struct{})
	for _, dimension := range space.Dimensions {
		for _, level := range dimension.Levels {
			if _, ok := seen[level.Column]; !ok {
				seen[level.Column] = struct{}{}
				levelColumns = append(levelColumns, level.Column)
			}
		}
	}
	for _, measure := range space.Measures {
		measureColumns = append(measureColumns, measure.Column)
	}
	return levelColumns, measureColumns
}

func (dimension DimensionSchema) Dimension() cube.Dimension {
	levels := make([]string, len(dimension.Levels))
	for i, level := range dimension.Levels {
		levels[i] = level.Name
	}
	return cube.Dimension{Name: dimension.Name, Label: dimension.Label, Levels: levels}
}

func (dimension DimensionSchema) Depth() int {
	return len(dimension.Levels)
}

// LevelColumns returns the columns of the first depth levels.
func (dimension DimensionSchema) LevelColumns(depth int) ([]string, error) {
	if depth > len(dimension.Levels) {
		return nil, wrap.Errorf(
			cube.ErrLeafCoordinate,
			"dimension '%s' has %d levels, but %d were requested",
			dimension.Name,
			len(dimension.Levels),
			depth,
		)
	}

	columns := make([]string, depth)
	for i := range columns {
		columns[i] = dimension.Levels[i].Column
	}
	return columns, nil
}
