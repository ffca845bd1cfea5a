// Package supervisor runs the long-lived parts of the server under a suture
// tree so a crashing background loop is restarted without taking the API
// down.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds restart policy. Zero values fall back to suture's
// defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func (c TreeConfig) withDefaults() TreeConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Tree has two layers: background (catalog refresh and similar loops) and
// api (the HTTP listener).
type Tree struct {
	root       *suture.Supervisor
	background *suture.Supervisor
	api        *suture.Supervisor
	config     TreeConfig
}

// NewTree builds the supervisor hierarchy. Supervisor events are logged
// through logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	config = config.withDefaults()

	hook := (&sutureslog.Handler{Logger: logger}).MustHook()
	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = hook

	t := &Tree{
		root:       suture.New("emotune", rootSpec),
		background: suture.New("background", spec),
		api:        suture.New("api", spec),
		config:     config,
	}
	t.root.Add(t.background)
	t.root.Add(t.api)
	return t
}

func (t *Tree) AddBackground(svc suture.Service) suture.ServiceToken {
	return t.background.Add(svc)
}

func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is cancelled or the root supervisor gives up.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
