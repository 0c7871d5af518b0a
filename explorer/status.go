package explorer

import (
	"hermannm.dev/enumnames"
)

// Status tells whether the selectors reflect a fully applied selection state.
type Status int8

const (
	StatusNotReady Status = iota + 1
	StatusReady
)

var statusMap = enumnames.NewMap(map[Status]string{
	StatusNotReady: "NOT_READY",
	StatusReady:    "READY",
})

func (status Status) IsValid() bool {
	return statusMap.ContainsEnumValue(status)
}

func (status Status) String() string {
	return statusMap.GetNameOrFallback(status, "INVALID_STATUS")
}

func (status Status) MarshalJSON() ([]byte, error) {
	return statusMap.MarshalToNameJSON(status)
}
