package db

import (
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
	"hermannm.dev/enumnames"
)

type AggregationKind int8

const (
	AggregationSum AggregationKind = iota + 1
	AggregationAverage
	AggregationMin
	AggregationMax
	AggregationCount
)

var aggregationMap = enumnames.NewMap(map[AggregationKind]string{
	AggregationSum:     "SUM",
	AggregationAverage: "AVERAGE",
	AggregationMin:     "MIN",
	AggregationMax:     "MAX",
	AggregationCount:   "COUNT",
})

func (kind AggregationKind) IsValid() bool {
	return aggregationMap.ContainsEnumValue(kind)
}

func (kind AggregationKind) String() string {
	return aggregationMap.GetNameOrFallback(kind, "INVALID_AGGREGATION")
}

func (kind AggregationKind) MarshalJSON() ([]byte, error) {
	return aggregationMap.MarshalToNameJSON(kind)
}

func (kind *AggregationKind) UnmarshalJSON(bytes []byte) error {
	return aggregationMap.UnmarshalFromNameJSON(bytes, kind)
}

func (kind *AggregationKind) UnmarshalYAML(node *yaml.Node) error {
	return aggregationMap.UnmarshalFromNameJSON([]byte(strconv.Quote(node.Value)), kind)
}

// Apply aggregates values in memory.
func (kind AggregationKind) Apply(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	switch kind {
	case AggregationAverage:
		return sum(values) / float64(len(values))
	case AggregationMin:
		result := math.Inf(1)
		for _, value := range values {
			result = min(result, value)
		}
		return result
	case AggregationMax:
		result := math.Inf(-1)
		for _, value := range values {
			result = max(result, value)
		}
		return result
	case AggregationCount:
		return float64(len(values))
	default:
		return sum(values)
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, value := range values {
		total += value
	}
	return total
}
