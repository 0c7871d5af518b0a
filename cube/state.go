package cube

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"hermannm.dev/wrap"
)

// SelectionState is the serializable description of a query. Its Encode form is the key of the
// result cache and the value pushed to the history channel.
type SelectionState struct {
	// Qualified measure names ("space.measure").
	Measures   []string         `json:"measures"`
	Dimensions []DimensionValue `json:"dimensions"`
	SkipZero   bool             `json:"skip_zero"`
	// Indices into Dimensions whose values are spread across columns.
	PivotOn []int    `json:"pivot_on"`
	Filters []Filter `json:"filters"`
}

// DimensionValue is one dimension slot of a selection. It is encoded as [name, path].
type DimensionValue struct {
	Name string
	Path ValuePath
}

// Filter restricts results to one coordinate value at a given depth of a dimension. It is encoded
// as [dimension, value, depth].
type Filter struct {
	Dimension string
	Value     string
	Depth     int
}

// Encode returns base64(JSON(state)).
func (state SelectionState) Encode() (string, error) {
	bytes, err := json.Marshal(state)
	if err != nil {
		return "", wrap.Error(err, "failed to serialize selection state")
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// Decode is the inverse of Encode. Malformed input yields ok = false rather than an error, so
// callers treat it as "no state".
func Decode(encoded string) (state SelectionState, ok bool) {
	if encoded == "" {
		return SelectionState{}, false
	}

	bytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return SelectionState{}, false
	}

	if err := json.Unmarshal(bytes, &state); err != nil {
		return SelectionState{}, false
	}

	return state, true
}

func (state *SelectionState) UnmarshalJSON(bytes []byte) error {
	type stateAlias SelectionState
	var decoded struct {
		stateAlias
		SkipZero *bool `json:"skip_zero"`
	}
	if err := json.Unmarshal(bytes, &decoded); err != nil {
		return err
	}

	*state = SelectionState(decoded.stateAlias)
	// States that do not mention skip_zero default to hiding empty rows.
	state.SkipZero = decoded.SkipZero == nil || *decoded.SkipZero
	return nil
}

func (value DimensionValue) MarshalJSON() ([]byte, error) {
	path := value.Path
	if path == nil {
		path = ValuePath{}
	}
	return json.Marshal([]any{value.Name, path})
}

func (value *DimensionValue) UnmarshalJSON(bytes []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(bytes, &pair); err != nil {
		return wrap.Error(err, "dimension value must be a [name, path] pair")
	}
	if len(pair) != 2 {
		return fmt.Errorf("dimension value has %d elements, expected 2", len(pair))
	}

	if err := json.Unmarshal(pair[0], &value.Name); err != nil {
		return wrap.Error(err, "invalid dimension name")
	}
	if err := json.Unmarshal(pair[1], &value.Path); err != nil {
		return wrap.Errorf(err, "invalid value path for dimension '%s'", value.Name)
	}
	return nil
}

func (filter Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{filter.Dimension, filter.Value, filter.Depth})
}

func (filter *Filter) UnmarshalJSON(bytes []byte) error {
	var triple []json.RawMessage
	if err := json.Unmarshal(bytes, &triple); err != nil {
		return wrap.Error(err, "filter must be a [dimension, value, depth] triple")
	}
	if len(triple) != 3 {
		return fmt.Errorf("filter has %d elements, expected 3", len(triple))
	}

	if err := json.Unmarshal(triple[0], &filter.Dimension); err != nil {
		return wrap.Error(err, "invalid filter dimension")
	}
	if err := json.Unmarshal(triple[1], &filter.Value); err != nil {
		return wrap.Error(err, "invalid filter value")
	}
	if err := json.Unmarshal(triple[2], &filter.Depth); err != nil {
		return wrap.Error(err, "invalid filter depth")
	}
	return nil
}

func (child Child) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{child.Value, child.Label})
}

func (child *Child) UnmarshalJSON(bytes []byte) error {
	var pair []string
	if err := json.Unmarshal(bytes, &pair); err != nil {
		return wrap.Error(err, "drill child must be a [value, label] pair")
	}

	switch len(pair) {
	case 1:
		child.Value, child.Label = pair[0], pair[0]
	case 2:
		child.Value, child.Label = pair[0], pair[1]
	default:
		return fmt.Errorf("drill child has %d elements, expected 2", len(pair))
	}
	return nil
}
