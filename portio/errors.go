package portio

import "errors"

// ErrTimeout is returned by Recv when no frame arrived within the
// configured receive timeout (spec §4.2). The switch loop treats it as
// an empty poll and logs any other receive error. Declared without a
// build tag so callers can check for it regardless of platform.
var ErrTimeout = errors.New("portio: receive timed out")
