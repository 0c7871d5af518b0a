package cube_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cube"
)

func TestEncodeDecode(t *testing.T) {
	state := cube.SelectionState{
		Measures: []string{"sales.amount", "sales.count"},
		Dimensions: []cube.DimensionValue{
			{Name: "geo", Path: cube.ValuePath{cube.Value("EU"), cube.Unset}},
			{Name: "time", Path: cube.Path("2024", "Q1")},
		},
		SkipZero: false,
		PivotOn:  []int{1},
		Filters:  []cube.Filter{{Dimension: "geo", Value: "FR", Depth: 2}},
	}

	encoded, err := state.Encode()
	require.NoError(t, err)

	decoded, ok := cube.Decode(encoded)
	require.True(t, ok)
	assert.Equal(t, state, decoded)

	reencoded, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, encoded, reencoded)
}

func TestEncodedWireFormat(t *testing.T) {
	state := cube.SelectionState{
		Measures:   []string{"sales.amount"},
		Dimensions: []cube.DimensionValue{{Name: "geo", Path: cube.ValuePath{cube.Value("EU"), cube.Unset}}},
		SkipZero:   true,
		PivotOn:    []int{},
		Filters:    []cube.Filter{},
	}

	encoded, err := state.Encode()
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"measures":["sales.amount"],"dimensions":[["geo",["EU",null]]],"skip_zero":true,"pivot_on":[],"filters":[]}`,
		string(raw),
	)
}

func TestDecodeInvalid(t *testing.T) {
	for _, encoded := range []string{
		"",
		"not base64!",
		base64.StdEncoding.EncodeToString([]byte("not json")),
		base64.StdEncoding.EncodeToString([]byte(`{"dimensions":[["geo"]]}`)),
	} {
		_, ok := cube.Decode(encoded)
		assert.False(t, ok, "expected decode of %q to fail", encoded)
	}
}

func TestDecodeDefaultsSkipZero(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"measures":["sales.amount"]}`))

	state, ok := cube.Decode(encoded)
	require.True(t, ok)
	assert.True(t, state.SkipZero)
	assert.Equal(t, []string{"sales.amount"}, state.Measures)
}

func TestClamp(t *testing.T) {
	path := cube.Path("FR", "Paris", "Other")

	assert.Equal(t, cube.ValuePath{cube.Value("FR"), cube.Unset}, path.Clamp(2))
	assert.Equal(t, path, path.Clamp(3))
	assert.Equal(t, path, path.Clamp(5))
	assert.Equal(t, cube.ValuePath{}, path.Clamp(0))

	// Clamping must not modify the original.
	assert.Equal(t, cube.Path("FR", "Paris", "Other"), path)
}

func TestParsePath(t *testing.T) {
	assert.Equal(t, cube.ValuePath{cube.Value("EU"), cube.Unset}, cube.ParsePath("EU/*"))
	assert.Equal(t, cube.ValuePath{cube.Unset}, cube.ParsePath(""))
	assert.Equal(t, "EU/FR/*", cube.ValuePath{cube.Value("EU"), cube.Value("FR"), cube.Unset}.String())
	assert.Equal(t, []string{"EU", "FR"}, cube.ParsePath("EU/FR/*").Prefix())
	assert.False(t, cube.ParsePath("EU/*").IsComplete())
	assert.True(t, cube.ParsePath("EU/FR").IsComplete())
}

func TestQualifiedName(t *testing.T) {
	measure := cube.Measure{
		Space: cube.Space{Name: "sales", Label: "Sales"},
		Name:  "amount",
		Label: "Amount",
	}
	assert.Equal(t, "sales.amount", measure.QualifiedName())
	assert.Equal(t, "Sales / Amount", measure.FullName())

	space, name, err := cube.SplitQualifiedName("sales.amount")
	require.NoError(t, err)
	assert.Equal(t, "sales", space)
	assert.Equal(t, "amount", name)

	_, _, err = cube.SplitQualifiedName("amount")
	assert.ErrorIs(t, err, cube.ErrUnknownMeasure)
}
