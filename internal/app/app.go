// SPDX-License-Identifier: MIT
// Package app assembles the capture pipeline and its transports from a
// Config and supervises them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"listener/internal/audio"
	"listener/internal/bars"
	"listener/internal/config"
	"listener/internal/log"
	"listener/internal/observe"
	"listener/internal/pipeline"
	"listener/internal/server"
	"listener/internal/spectrum"
	"listener/internal/transport"
	"listener/pkg/build"

	"golang.org/x/sync/errgroup"
)

// toneAmplitude is the tone source level as a fraction of full scale.
const toneAmplitude = 0.5

type App struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	tcp      *server.Server
	ws       *transport.WebSocketServer

	provider   *observe.Provider
	metricsSrv *http.Server
	metricsLn  net.Listener

	portAudio bool // PortAudio initialised by New.
}

// New opens the capture source and builds the pipeline and transports.
// Nothing is bound until Listen.
func New(cfg *config.Config) (_ *App, err error) {
	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var metrics *observe.Metrics
	if cfg.Metrics.Addr != "" {
		if a.provider, err = observe.NewProvider(build.GetBuildFlags().Version); err != nil {
			return nil, fmt.Errorf("failed to create metrics provider: %w", err)
		}
		if metrics, err = observe.NewMetrics(a.provider.MeterProvider); err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	window, err := spectrum.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: analysis.window: %v", config.ErrInvalid, err)
	}
	analyzer, err := spectrum.NewAnalyzer(spectrum.Config{
		FFTSize:       cfg.Analysis.FFTSize,
		Channels:      cfg.Audio.Channels,
		SampleRate:    cfg.Audio.SampleRate,
		BitsPerSample: cfg.Audio.BitsPerSample,
		Window:        window,
	})
	if err != nil {
		return nil, err
	}

	smoothing, err := bars.ParseSmoothing(cfg.Bars.Smoothing)
	if err != nil {
		return nil, fmt.Errorf("%w: bars.smoothing: %v", config.ErrInvalid, err)
	}
	reducer, err := bars.NewReducer(bars.Config{
		Count:      cfg.Bars.Count,
		Stride:     cfg.Bars.Stride,
		Resolution: cfg.Bars.Resolution,
		Smoothing:  smoothing,
		Gains:      cfg.Bars.Gains,
	})
	if err != nil {
		return nil, err
	}

	source, err := a.openSource()
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{Metrics: metrics}
	if cfg.Analysis.GateThreshold > 0 {
		opts.Gate = audio.NewGate(cfg.Analysis.GateThreshold)
	}
	if cfg.Recording.Enabled {
		rec, err := audio.NewRecorder(cfg.Recording.Path, int(cfg.Audio.SampleRate),
			cfg.Audio.Channels, cfg.Recording.MaxSeconds)
		if err != nil {
			log.Errorf("Recording disabled: %v", err)
		} else {
			log.Infof("Recording capture to %s", cfg.Recording.Path)
			opts.Recorder = rec
		}
	}

	if a.pipeline, err = pipeline.New(source, analyzer, reducer, opts); err != nil {
		source.Close()
		if opts.Recorder != nil {
			opts.Recorder.Close()
		}
		return nil, err
	}

	a.tcp = server.New(server.Config{
		Addr:          cfg.Addr(),
		SendBuffer:    cfg.Server.SendBuffer,
		SingleSession: cfg.Server.SingleSession,
	}, a.pipeline, metrics)
	if cfg.Server.WebSocketAddr != "" {
		a.ws = transport.NewWebSocketServer(cfg.Server.WebSocketAddr, a.pipeline, metrics)
	}
	return a, nil
}

func (a *App) openSource() (audio.Source, error) {
	ac := a.cfg.Audio
	switch ac.Source {
	case config.SourceTone:
		log.Infof("Using %.1f Hz tone source", ac.ToneHz)
		return audio.NewTone(ac.Channels, ac.SampleRate, ac.ToneHz, toneAmplitude), nil
	case config.SourceSilence:
		log.Infof("Using silence source")
		return audio.NewSilence(ac.Channels, ac.SampleRate), nil
	}

	if err := audio.Initialize(); err != nil {
		return nil, err
	}
	a.portAudio = true

	device, err := audio.OpenDevice(audio.DeviceConfig{
		DeviceID:     ac.InputDevice,
		Channels:     ac.Channels,
		SampleRate:   ac.SampleRate,
		WindowFrames: a.cfg.Analysis.FFTSize,
		LowLatency:   ac.LowLatency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}
	return device, nil
}

// Listen binds every configured listener. Any bind failure is returned.
func (a *App) Listen() error {
	if err := a.tcp.Listen(); err != nil {
		return fmt.Errorf("failed to bind pull server: %w", err)
	}
	if a.ws != nil {
		if err := a.ws.Listen(); err != nil {
			return fmt.Errorf("failed to bind websocket server: %w", err)
		}
	}
	if a.provider != nil {
		ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("failed to bind metrics endpoint: %w", err)
		}
		a.metricsLn = ln
		a.metricsSrv = &http.Server{
			Handler:           a.provider.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return nil
}

// Addr returns the TCP pull server address.
func (a *App) Addr() net.Addr {
	return a.tcp.Addr()
}

// WebSocketAddr returns the websocket server address, or nil if disabled.
func (a *App) WebSocketAddr() net.Addr {
	if a.ws == nil {
		return nil
	}
	return a.ws.Addr()
}

// MetricsAddr returns the metrics endpoint address, or nil if disabled.
func (a *App) MetricsAddr() net.Addr {
	if a.metricsLn == nil {
		return nil
	}
	return a.metricsLn.Addr()
}

// Run serves until ctx is done, the TCP server finishes its single session,
// or a transport fails. The TCP server is the primary transport: when it
// returns, the others are stopped.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		err := a.tcp.Serve(gctx)
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return err
	})

	if a.ws != nil {
		g.Go(func() error {
			return a.ws.Serve(gctx)
		})
	}

	if a.metricsSrv != nil {
		g.Go(func() error {
			stop := context.AfterFunc(gctx, func() { a.metricsSrv.Close() })
			defer stop()
			log.Infof("Metrics endpoint on http://%s/metrics", a.metricsLn.Addr())
			if err := a.metricsSrv.Serve(a.metricsLn); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// Close stops capture, finalises any recording and releases PortAudio.
func (a *App) Close() error {
	var errs []error
	if a.tcp != nil {
		a.tcp.Close()
	}
	if a.ws != nil {
		a.ws.Close()
	}
	if a.metricsSrv != nil {
		a.metricsSrv.Close()
	}
	if a.metricsLn != nil {
		a.metricsLn.Close()
	}
	if a.pipeline != nil {
		errs = append(errs, a.pipeline.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Shutdown(context.Background()))
		a.provider = nil
	}
	if a.portAudio {
		errs = append(errs, audio.Terminate())
		a.portAudio = false
	}
	return errors.Join(errs...)
}
