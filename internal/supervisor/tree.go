// Package supervisor runs the long-lived parts of the server under a suture
// tree so a crashed loop is restarted instead of taking the process down.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree has two layers: core (matching rescans, interest workers, limiter
// cleanup) and transport (HTTP server, Telegram poller). A transport crash
// does not restart the matching loop.
type Tree struct {
	root      *suture.Supervisor
	core      *suture.Supervisor
	transport *suture.Supervisor
}

func NewTree(cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	log := logger.Named("supervisor")
	spec := suture.Spec{
		EventHook:        eventHook(log),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	childSpec := spec
	childSpec.EventHook = nil

	t := &Tree{
		root:      suture.New("strangerwave", spec),
		core:      suture.New("core", childSpec),
		transport: suture.New("transport", childSpec),
	}
	t.root.Add(t.core)
	t.root.Add(t.transport)
	return t
}

func eventHook(log *zap.SugaredLogger) suture.EventHook {
	return func(e suture.Event) {
		kv := make([]interface{}, 0, 2*len(e.Map()))
		for k, v := range e.Map() {
			kv = append(kv, k, v)
		}
		log.Warnw(e.String(), kv...)
	}
}

func (t *Tree) AddCoreService(svc suture.Service) suture.ServiceToken {
	return t.core.Add(svc)
}

func (t *Tree) AddTransportService(svc suture.Service) suture.ServiceToken {
	return t.transport.Add(svc)
}

// Serve blocks until ctx is cancelled and every service has stopped.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
