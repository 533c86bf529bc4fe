// Package repoerr holds errors shared by every store implementation.
package repoerr

import "errors"

// ErrUnavailable marks failures where the backing store could not be reached at all.
var ErrUnavailable = errors.New("store unavailable")
