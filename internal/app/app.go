// Package app wires all Voxboard subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the control API until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithSynthesizer, WithPlayer, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/voxboard/voxboard/internal/board"
	"github.com/voxboard/voxboard/internal/config"
	"github.com/voxboard/voxboard/internal/health"
	"github.com/voxboard/voxboard/internal/observe"
	"github.com/voxboard/voxboard/internal/resilience"
	"github.com/voxboard/voxboard/internal/server"
	"github.com/voxboard/voxboard/pkg/announce"
	"github.com/voxboard/voxboard/pkg/audio"
	audiomock "github.com/voxboard/voxboard/pkg/audio/mock"
	"github.com/voxboard/voxboard/pkg/audio/speaker"
	"github.com/voxboard/voxboard/pkg/provider/speech"
	speechrest "github.com/voxboard/voxboard/pkg/provider/speech/rest"
	"github.com/voxboard/voxboard/pkg/provider/symbols"
	symbolsrest "github.com/voxboard/voxboard/pkg/provider/symbols/rest"
	"github.com/voxboard/voxboard/pkg/symbolcache"
	cachepg "github.com/voxboard/voxboard/pkg/symbolcache/postgres"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	// Injectable collaborators. Nil means New builds the real one from config.
	player     audio.Player
	innerSynth speech.Synthesizer
	searcher   symbols.Searcher
	mirror     symbolcache.Mirror

	// Subsystems — initialised in New, torn down in Shutdown.
	synth    *resilience.Synthesizer
	queue    *announce.Queue
	resolver *symbolcache.Resolver
	session  *board.Session
	httpSrv  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSynthesizer injects a speech synthesizer instead of the REST client.
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(a *App) { a.innerSynth = s }
}

// WithPlayer injects an audio player instead of building one from config.
func WithPlayer(p audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithSearcher injects a symbol searcher instead of the REST client.
func WithSearcher(s symbols.Searcher) Option {
	return func(a *App) { a.searcher = s }
}

// WithMirror injects a symbol cache mirror instead of building one from config.
func WithMirror(m symbolcache.Mirror) Option {
	return func(a *App) { a.mirror = m }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any collaborator.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initAudio(); err != nil {
		return nil, fmt.Errorf("app: init audio: %w", err)
	}
	if err := a.initSpeech(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init speech: %w", err)
	}
	if err := a.initSymbols(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init symbols: %w", err)
	}

	m := observe.DefaultMetrics()
	a.queue = announce.New(
		observedSynthesizer{inner: a.synth, metrics: m},
		observedPlayer{inner: a.player, metrics: m},
		announce.WithSegmentGap(time.Duration(cfg.Scan.SegmentGapMS)*time.Millisecond),
	)
	a.session = board.NewSession(a.queue, a.resolver, board.Defaults{
		ScanDelay: time.Duration(cfg.Scan.DelayMS) * time.Millisecond,
		LoopLimit: cfg.Scan.LoopLimit,
	})

	a.initServer()
	return a, nil
}

// initAudio builds the playback backend selected by the config.
func (a *App) initAudio() error {
	if a.player == nil {
		switch a.cfg.Audio.Backend {
		case config.BackendMock:
			a.player = audiomock.New()
		default:
			spk, err := speaker.New(audio.Format{
				SampleRate: a.cfg.Audio.SampleRate,
				Channels:   a.cfg.Audio.Channels,
				BitDepth:   16,
			})
			if err != nil {
				return err
			}
			a.player = spk
		}
	}
	a.closers = append(a.closers, a.player.Close)
	return nil
}

// initSpeech builds the synthesis client and wraps it in the circuit breaker.
func (a *App) initSpeech() error {
	inner := a.innerSynth
	if inner == nil {
		var opts []speechrest.Option
		if a.cfg.Speech.TimeoutMS > 0 {
			opts = append(opts, speechrest.WithTimeout(time.Duration(a.cfg.Speech.TimeoutMS)*time.Millisecond))
		}
		p, err := speechrest.New(a.cfg.Speech.BaseURL, opts...)
		if err != nil {
			return err
		}
		inner = p
	}

	a.synth = resilience.NewSynthesizer(inner, resilience.CircuitBreakerConfig{
		Name:         "speech",
		MaxFailures:  a.cfg.Speech.Breaker.FailureThreshold,
		ResetTimeout: time.Duration(a.cfg.Speech.Breaker.CooldownMS) * time.Millisecond,
	})
	return nil
}

// initSymbols builds the symbol searcher, the durable mirror, and the caching
// resolver, then restores any previously mirrored entries. With no symbol
// service configured the resolver stays nil and items render without images.
func (a *App) initSymbols(ctx context.Context) error {
	if a.searcher == nil {
		if a.cfg.Symbols.BaseURL == "" {
			slog.Info("no symbol service configured, images disabled")
			return nil
		}
		var opts []symbolsrest.Option
		if a.cfg.Symbols.TimeoutMS > 0 {
			opts = append(opts, symbolsrest.WithTimeout(time.Duration(a.cfg.Symbols.TimeoutMS)*time.Millisecond))
		}
		p, err := symbolsrest.New(a.cfg.Symbols.BaseURL, opts...)
		if err != nil {
			return err
		}
		a.searcher = p
	}

	if a.mirror == nil {
		switch {
		case a.cfg.Cache.PostgresDSN != "":
			m, err := cachepg.New(ctx, a.cfg.Cache.PostgresDSN, sessionID())
			if err != nil {
				return err
			}
			a.mirror = m
			a.closers = append(a.closers, func() error {
				m.Close()
				return nil
			})
		case a.cfg.Cache.Dir != "":
			a.mirror = symbolcache.NewFileMirror(filepath.Join(a.cfg.Cache.Dir, sessionID()+".json"))
		}
	}

	opts := []symbolcache.Option{
		symbolcache.WithTTL(time.Duration(a.cfg.Cache.TTLMinutes) * time.Minute),
		symbolcache.WithLookupLimit(a.cfg.Symbols.LookupLimit),
	}
	if a.mirror != nil {
		opts = append(opts, symbolcache.WithMirror(a.mirror))
	}
	searcher := observedSearcher{inner: a.searcher, metrics: observe.DefaultMetrics()}
	a.resolver = symbolcache.New(searcher, opts...)
	a.resolver.Restore(ctx)
	return nil
}

// initServer assembles the health checkers, the control API handler, and the
// HTTP server around them.
func (a *App) initServer() {
	checkers := []health.Checker{{
		Name: "speech",
		Check: func(context.Context) error {
			if a.synth.Breaker().State() == resilience.StateOpen {
				return errors.New("circuit breaker open")
			}
			return nil
		},
	}}
	if pg, ok := a.mirror.(*cachepg.Mirror); ok {
		checkers = append(checkers, health.Checker{Name: "database", Check: pg.Ping})
	}

	srv := server.New(a.session, a.resolver, health.New(checkers...))
	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Session returns the board session, for callers that bypass the HTTP surface.
func (a *App) Session() *board.Session {
	return a.session
}

// Run serves the control API and blocks until ctx is cancelled or the server
// fails. The listener is shut down by [App.Shutdown], not by Run.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("control api listening",
		"addr", a.cfg.Server.ListenAddr,
		"tls", a.cfg.Server.TLS != nil,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ApplyConfig applies a hot-reloaded configuration. Only the scan settings are
// applied here; the log level is handled by the caller, and everything else
// requires a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.ScanChanged {
		return
	}
	a.session.SetDefaults(board.Defaults{
		ScanDelay: time.Duration(d.NewScan.DelayMS) * time.Millisecond,
		LoopLimit: d.NewScan.LoopLimit,
	})
	a.queue.SetSegmentGap(time.Duration(d.NewScan.SegmentGapMS) * time.Millisecond)
	slog.Info("scan settings reloaded",
		"delay_ms", d.NewScan.DelayMS,
		"loop_limit", d.NewScan.LoopLimit,
		"segment_gap_ms", d.NewScan.SegmentGapMS,
	)
}

// Shutdown stops the HTTP server, tears the session down (waiting for any
// in-flight playback), and runs the remaining closers in order. It respects
// the context deadline: if ctx expires, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}
		if a.session != nil {
			if err := a.session.Close(ctx); err != nil {
				slog.Warn("session close error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll unwinds partially built subsystems when New fails midway.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error during failed init", "err", err)
		}
	}
}

// sessionID scopes the durable symbol mirror to this machine. Voxboard runs
// one board per device, so the hostname is a stable, human-recognisable key.
func sessionID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "default"
	}
	return host
}
