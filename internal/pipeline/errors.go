package pipeline

import "fmt"

// ShapeMismatchError reports a stage whose declared pattern does not fit the
// actual shape of the dataset it names. Fatal: the run aborts with the
// offending dataset and pattern in the diagnostic.
type ShapeMismatchError struct {
	Stage   string
	Dataset string
	Pattern string
	Cause   error
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("stage %q: pattern %q does not match shape of dataset %q: %v",
		e.Stage, e.Pattern, e.Dataset, e.Cause)
}

func (e *ShapeMismatchError) Unwrap() error { return e.Cause }

// UnknownDatasetError reports a stage pattern naming a dataset absent from
// the set it was declared for.
type UnknownDatasetError struct {
	Stage   string
	Dataset string
	Role    string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("stage %q names unknown %s dataset %q", e.Stage, e.Role, e.Dataset)
}
