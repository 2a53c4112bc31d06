// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"listener/internal/bars"
)

// Probe connects to a pull server at addr, sends pulls and writes each
// decoded reply to w, one line per pull. count is the bar count the server
// was configured with; replies carry no framing.
func Probe(ctx context.Context, addr string, count, pulls int, w io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Unix(1, 0)) })
		defer stop()
	}

	reply := make([]byte, 3*count)
	for i := range pulls {
		if _, err := conn.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("pull %d: %w", i+1, err)
		}
		if _, err := io.ReadFull(conn, reply); err != nil {
			return fmt.Errorf("pull %d: reading reply: %w", i+1, err)
		}
		levels, err := bars.ParseLine(reply)
		if err != nil {
			return fmt.Errorf("pull %d: %w", i+1, err)
		}
		fmt.Fprintln(w, levels)
	}
	return nil
}
