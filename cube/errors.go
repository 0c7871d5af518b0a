package cube

import (
	"errors"
)

var (
	ErrUnknownSpace      = errors.New("unknown space")
	ErrUnknownDimension  = errors.New("unknown dimension")
	ErrUnknownMeasure    = errors.New("unknown measure")
	ErrLeafCoordinate    = errors.New("coordinate is at the deepest level of its dimension")
	ErrNoMeasures        = errors.New("no measures selected")
	ErrSearchUnavailable = errors.New("search is not available for this backend")
)

// ServerError is an error reported by the aggregation backend as part of a well-formed response,
// as opposed to a transport failure.
type ServerError struct {
	Message string
}

func (err *ServerError) Error() string {
	return "server error: " + err.Message
}

// IsServerError reports whether err (or an error it wraps) is a ServerError.
func IsServerError(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
