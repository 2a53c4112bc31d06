// SPDX-License-Identifier: MIT

//go:build unix

// Package quiet mutes the process stderr. Audio host libraries print
// diagnostics straight to file descriptor 2; pointing it at /dev/null keeps
// them off the terminal while the logger writes to a saved copy.
package quiet

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Stderr redirects fd 2 to /dev/null for the rest of the process and returns
// a file that still writes to the original stderr.
func Stderr() (*os.File, error) {
	return redirect(int(os.Stderr.Fd()), "stderr")
}

// redirect points fd at /dev/null and returns a duplicate of its previous
// target.
func redirect(fd int, name string) (*os.File, error) {
	saved, err := unix.Dup(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate fd %d: %w", fd, err)
	}
	unix.CloseOnExec(saved)

	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		unix.Close(saved)
		return nil, err
	}
	defer devnull.Close()

	if err := dup2(int(devnull.Fd()), fd); err != nil {
		unix.Close(saved)
		return nil, fmt.Errorf("failed to redirect fd %d: %w", fd, err)
	}
	return os.NewFile(uintptr(saved), name), nil
}
