package domain

import "errors"

// ErrNotFound is returned by persistence reads that find no matching record.
var ErrNotFound = errors.New("domain: not found")
