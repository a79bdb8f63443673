package analysis

import "errors"

// ErrResponseFormat indicates the model returned data that does not conform
// to the declared schema. This is a contract violation by the upstream
// model, not a transient fault, and is never retried.
var ErrResponseFormat = errors.New("analysis response does not match the declared schema")
