package cube

import (
	"encoding/json"
	"strings"

	"hermannm.dev/wrap"
)

// Segment is one element of a ValuePath. The zero Segment is the unset sentinel, marking the depth
// at which drilling stops and values are aggregated. It is encoded as JSON null.
type Segment struct {
	value string
	set   bool
}

// Unset is the sentinel segment: "aggregate up to this depth, do not drill further".
var Unset Segment

func Value(value string) Segment {
	return Segment{value: value, set: true}
}

func (segment Segment) IsUnset() bool {
	return !segment.set
}

func (segment Segment) Get() (value string, ok bool) {
	return segment.value, segment.set
}

func (segment Segment) String() string {
	if !segment.set {
		return unsetMarker
	}
	return segment.value
}

func (segment Segment) MarshalJSON() ([]byte, error) {
	if !segment.set {
		return []byte("null"), nil
	}
	return json.Marshal(segment.value)
}

func (segment *Segment) UnmarshalJSON(bytes []byte) error {
	if string(bytes) == "null" {
		*segment = Unset
		return nil
	}

	var value string
	if err := json.Unmarshal(bytes, &value); err != nil {
		return wrap.Error(err, "value path segment must be a string or null")
	}

	*segment = Value(value)
	return nil
}

// ValuePath is a path from a dimension root, e.g. ["EU", "FR"]. Trailing unset segments express
// aggregation depth: ["EU", Unset] groups by the children of "EU".
type ValuePath []Segment

const (
	pathSeparator = "/"
	unsetMarker   = "*"
)

// Path builds a ValuePath of set segments.
func Path(values ...string) ValuePath {
	path := make(ValuePath, len(values))
	for i, value := range values {
		path[i] = Value(value)
	}
	return path
}

// ParsePath parses the String form of a path ("EU/FR", "EU/*"). An empty string yields [Unset].
func ParsePath(text string) ValuePath {
	if text == "" {
		return ValuePath{Unset}
	}

	parts := strings.Split(text, pathSeparator)
	path := make(ValuePath, len(parts))
	for i, part := range parts {
		if part == unsetMarker {
			path[i] = Unset
		} else {
			path[i] = Value(part)
		}
	}
	return path
}

func (path ValuePath) String() string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = segment.String()
	}
	return strings.Join(parts, pathSeparator)
}

func (path ValuePath) Clone() ValuePath {
	if path == nil {
		return nil
	}
	clone := make(ValuePath, len(path))
	copy(clone, path)
	return clone
}

// Prefix returns the set values before the first unset segment.
func (path ValuePath) Prefix() []string {
	values := make([]string, 0, len(path))
	for _, segment := range path {
		value, ok := segment.Get()
		if !ok {
			break
		}
		values = append(values, value)
	}
	return values
}

// IsComplete reports whether no segment is unset, i.e. the path addresses one single coordinate.
func (path ValuePath) IsComplete() bool {
	for _, segment := range path {
		if segment.IsUnset() {
			return false
		}
	}
	return true
}

func (path ValuePath) Equal(other ValuePath) bool {
	if len(path) != len(other) {
		return false
	}
	for i := range path {
		if path[i] != other[i] {
			return false
		}
	}
	return true
}

// Clamp truncates the path to at most depth segments. If anything was cut off, the new last
// segment is forced to Unset, so a too-long path degrades to "selected at the deepest
// representable level".
func (path ValuePath) Clamp(depth int) ValuePath {
	clamped := path.Clone()
	if depth < 0 || len(clamped) <= depth {
		return clamped
	}

	clamped = clamped[:depth]
	if depth > 0 {
		clamped[depth-1] = Unset
	}
	return clamped
}
