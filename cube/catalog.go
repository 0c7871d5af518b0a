package cube

// Info is the metadata description of a cube, as returned by a MetadataFetcher.
type Info struct {
	Spaces []SpaceInfo `json:"spaces"`
}

type SpaceInfo struct {
	Name       string        `json:"name"`
	Label      string        `json:"label"`
	Measures   []MeasureInfo `json:"measures"`
	Dimensions []Dimension   `json:"dimensions"`
}

type MeasureInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Catalog indexes cube metadata: every measure of every space, and the dimensions of each space.
type Catalog struct {
	spaces     []Space
	measures   []Measure
	dimensions map[string][]Dimension
}

func NewCatalog(info Info) Catalog {
	catalog := Catalog{dimensions: make(map[string][]Dimension, len(info.Spaces))}

	for _, spaceInfo := range info.Spaces {
		space := Space{Name: spaceInfo.Name, Label: spaceInfo.Label}
		catalog.spaces = append(catalog.spaces, space)

		for _, measureInfo := range spaceInfo.Measures {
			catalog.measures = append(
				catalog.measures,
				Measure{Space: space, Name: measureInfo.Name, Label: measureInfo.Label},
			)
		}

		dimensions := make([]Dimension, len(spaceInfo.Dimensions))
		for i, dimension := range spaceInfo.Dimensions {
			dimensions[i] = dimension.Clone()
		}
		catalog.dimensions[space.Name] = dimensions
	}

	return catalog
}

func (catalog Catalog) Spaces() []Space {
	return catalog.spaces
}

// Measures returns all measures, ordered by space and then by declaration.
func (catalog Catalog) Measures() []Measure {
	return catalog.measures
}

func (catalog Catalog) Measure(qualifiedName string) (Measure, bool) {
	for _, measure := range catalog.measures {
		if measure.QualifiedName() == qualifiedName {
			return measure, true
		}
	}
	return Measure{}, false
}

func (catalog Catalog) Dimensions(space string) []Dimension {
	return catalog.dimensions[space]
}

// ValidDimensions returns the dimensions usable with all the given measures: those present (by
// name) in the space of every measure. The order follows the first measure's space, and where
// spaces disagree on a dimension's depth, the shallower definition is kept.
func (catalog Catalog) ValidDimensions(measures []Measure) []Dimension {
	if len(measures) == 0 {
		return nil
	}

	first := catalog.dimensions[measures[0].Space.Name]
	valid := make([]Dimension, len(first))
	for i, dimension := range first {
		valid[i] = dimension.Clone()
	}

	for _, measure := range measures[1:] {
		others := catalog.dimensions[measure.Space.Name]

		intersection := make([]Dimension, 0, len(valid))
		for _, dimension := range valid {
			other, found := findDimension(others, dimension.Name)
			if !found {
				continue
			}

			if other.Depth() < dimension.Depth() {
				dimension = other.Clone()
			}
			intersection = append(intersection, dimension)
		}
		valid = intersection
	}

	return valid
}

func findDimension(dimensions []Dimension, name string) (Dimension, bool) {
	for _, dimension := range dimensions {
		if dimension.Name == name {
			return dimension, true
		}
	}
	return Dimension{}, false
}
