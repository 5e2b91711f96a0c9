package trajectory

import "errors"

// ErrEmptyAggregationInput is returned by Combine when there is nothing to
// combine.
var ErrEmptyAggregationInput = errors.New("no snapshot tables to aggregate")
