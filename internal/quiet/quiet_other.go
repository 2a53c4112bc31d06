// SPDX-License-Identifier: MIT

//go:build !unix

package quiet

import "os"

// Stderr is a no-op where file descriptors cannot be redirected.
func Stderr() (*os.File, error) {
	return os.Stderr, nil
}
