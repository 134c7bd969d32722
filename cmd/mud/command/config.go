package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

type Config struct {
	TickInterval string           `json:"tick_interval"`
	TestMode     bool             `json:"test_mode,omitempty"`
	Listeners    []ListenerConfig `json:"listeners"`
	Storage      StorageConfig    `json:"storage"`
	Nats         NatsConfig       `json:"nats"`
	World        WorldConfig      `json:"world"`
	Sessions     SessionConfig    `json:"sessions"`
	Snapshots    SnapshotConfig   `json:"snapshots"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.TickInterval != "" {
		d, err := time.ParseDuration(c.TickInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing tick_interval: %w", err))
		} else if d < 100*time.Millisecond {
			el.Add(fmt.Errorf("tick_interval must be at least 100ms"))
		}
	}

	for i, l := range c.Listeners {
		err := l.validate()
		if err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
	}

	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.World.validate())
	el.Add(c.Sessions.validate())
	el.Add(c.Snapshots.validate())

	return el.Err()
}

type SessionConfig struct {
	IdleTimeout     string   `json:"idle_timeout,omitempty"`
	RestrictedNames []string `json:"restricted_names,omitempty"`
}

func (c *SessionConfig) validate() error {
	el := errors.NewErrorList()

	if c.IdleTimeout != "" {
		_, err := time.ParseDuration(c.IdleTimeout)
		if err != nil {
			el.Add(fmt.Errorf("parsing idle_timeout: %w", err))
		}
	}

	return el.Err()
}

type SnapshotConfig struct {
	Path string `json:"path"`
}

func (c *SnapshotConfig) validate() error {
	el := errors.NewErrorList()

	if c.Path == "" {
		el.Add(fmt.Errorf("snapshots: path is required"))
	}

	return el.Err()
}
