// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"listener/cmd"
	"listener/internal/app"
	"listener/internal/log"
	"listener/internal/quiet"
	"listener/pkg/build"
)

// main runs in three phases:
//
// 1. Startup:
//   - Read build information
//   - Parse the command line and load the configuration
//   - Mute the process stderr if configured
//   - Open the capture source and bind the listeners
//
// 2. Serve:
//   - Answer pulls until a signal arrives, or until the first client
//     leaves in single-session mode
//
// 3. Shutdown:
//   - Stop capture, finalise any recording and release PortAudio
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("Build information incomplete: %v", err)
	}

	options, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if !options.Serve {
		return
	}
	cfg := options.Config

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, using %s", cfg.LogLevel, log.GetLevel())
	}

	// PortAudio and its host APIs write diagnostics straight to fd 2.
	if cfg.QuietStderr {
		saved, err := quiet.Stderr()
		if err != nil {
			log.Warnf("Failed to mute stderr: %v", err)
		} else {
			log.SetOutput(saved)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	if err := a.Listen(); err != nil {
		a.Close()
		log.Fatalf("Startup failed: %v", err)
	}

	// ==================== SERVE PHASE ====================

	runErr := a.Run(ctx)

	// ==================== SHUTDOWN PHASE ====================

	if err := a.Close(); err != nil {
		log.Errorf("Error during shutdown: %v", err)
	}
	if cfg.Recording.Enabled {
		log.Infof("Recording saved to %s", cfg.Recording.Path)
	}
	if runErr != nil {
		log.Fatalf("Server stopped: %v", runErr)
	}
	log.Info("Shut down")
}
