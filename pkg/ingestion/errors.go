package ingestion

import (
	"errors"
	"fmt"
)

var (
	errMissingColumn = errors.New("missing column")
	errMissingValue  = errors.New("missing required value")
	errInvalidType   = errors.New("invalid value type")
	errMalformedRow  = errors.New("malformed row")
)

// SchemaError reports a source that violates its declared schema. It is fatal
// for the ingestion stage; nothing is coerced.
type SchemaError struct {
	File   string
	Line   int
	Column string
	reason error
}

func (e SchemaError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("%s line %d column %s: %v", e.File, e.Line, e.Column, e.reason)
	case e.Column != "":
		return fmt.Sprintf("%s column %s: %v", e.File, e.Column, e.reason)
	case e.Line > 0:
		return fmt.Sprintf("%s line %d: %v", e.File, e.Line, e.reason)
	default:
		return fmt.Sprintf("%s: %v", e.File, e.reason)
	}
}

func (e SchemaError) Unwrap() error {
	return e.reason
}

func IsSchemaError(err error) bool {
	var se SchemaError
	return errors.As(err, &se)
}
