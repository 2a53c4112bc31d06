// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"time"

	"listener/internal/config"
	"listener/pkg/build"

	"github.com/spf13/cobra"
)

// Options is the result of parsing the command line.
type Options struct {
	Config *config.Config
	Serve  bool // The root command ran; false after --help, --version or probe.
}

// flagValues holds the raw flag values; only flags the user set are applied
// over the loaded configuration.
type flagValues struct {
	configPath    string
	deviceID      int
	port          int
	source        string
	lowLatency    bool
	singleSession bool
	record        bool
	output        string
	verbose       bool

	probeCount   int
	probeTimeout time.Duration
}

func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.VersionString(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			options.Config = cfg
			options.Serve = true
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Probe command
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Pull bar lines from a running server and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if flags.probeTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, flags.probeTimeout)
				defer cancel()
			}
			return Probe(ctx, cfg.Addr(), cfg.Bars.Count, flags.probeCount, cmd.OutOrStdout())
		},
	}
	probeCmd.Flags().IntVarP(&flags.probeCount, "count", "n", 1,
		"Number of pulls to send")
	probeCmd.Flags().DurationVarP(&flags.probeTimeout, "timeout", "t", 5*time.Second,
		"Give up after this long (0 waits forever)")
	rootCmd.AddCommand(probeCmd)

	// Configuration file
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "f", "",
		"Path to a YAML configuration file (default ./listener.yaml if present)")

	// Audio Device Configuration
	rootCmd.PersistentFlags().IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"PortAudio input device index (-1 for the host default)")
	rootCmd.PersistentFlags().StringVar(&flags.source, "source", config.DefaultSource,
		"Capture source: device, tone or silence")
	rootCmd.PersistentFlags().BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Server Configuration
	rootCmd.PersistentFlags().IntVarP(&flags.port, "port", "p", config.DefaultPort,
		"TCP port for the pull protocol")
	rootCmd.PersistentFlags().BoolVar(&flags.singleSession, "single-session", config.DefaultSingleSession,
		"Exit after the first client disconnects")

	// Recording Configuration
	rootCmd.PersistentFlags().BoolVarP(&flags.record, "record", "r", config.DefaultRecordInputStream,
		"Record captured audio to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", config.DefaultOutputFile,
		"Recording output file")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// loadConfig loads the configuration file and applies the flags the user
// set on top of it.
func loadConfig(cmd *cobra.Command, flags *flagValues) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("device") {
		cfg.Audio.InputDevice = flags.deviceID
	}
	if set("source") {
		cfg.Audio.Source = flags.source
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = flags.lowLatency
	}
	if set("port") {
		cfg.Server.Port = flags.port
	}
	if set("single-session") {
		cfg.Server.SingleSession = flags.singleSession
	}
	if set("record") {
		cfg.Recording.Enabled = flags.record
	}
	if set("output") {
		cfg.Recording.Path = flags.output
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("after command line overrides: %w", err)
	}
	return cfg, nil
}
