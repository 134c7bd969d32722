package command

import (
	"fmt"
	"time"

	"github.com/driftmark/go-mud/internal/combat"
	"github.com/driftmark/go-mud/internal/commands"
	"github.com/driftmark/go-mud/internal/control"
	"github.com/driftmark/go-mud/internal/driver"
	"github.com/driftmark/go-mud/internal/listener"
	"github.com/driftmark/go-mud/internal/messaging"
	"github.com/driftmark/go-mud/internal/population"
	"github.com/driftmark/go-mud/internal/session"
	"github.com/driftmark/go-mud/internal/snapshot"
	service "github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	stores, err := cfg.Storage.BuildStores()
	if err != nil {
		return nil, fmt.Errorf("building stores: %w", err)
	}

	world, err := cfg.World.BuildWorld(stores)
	if err != nil {
		return nil, fmt.Errorf("building world: %w", err)
	}

	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	events := messaging.NewEventPublisher(natsServer)

	var schedOpts []driver.SchedulerOpt
	if cfg.TickInterval != "" {
		d, err := time.ParseDuration(cfg.TickInterval)
		if err != nil {
			return nil, fmt.Errorf("parsing tick_interval: %w", err)
		}
		schedOpts = append(schedOpts, driver.WithTickLength(d))
	}
	if cfg.TestMode {
		schedOpts = append(schedOpts, driver.WithTestMode(true))
	}

	// The scheduler and session manager reference each other (sessions
	// run player input under the scheduler's sync gate), so the pipeline
	// stages are attached after both exist.
	sched := driver.NewScheduler(nil, schedOpts...)

	var sessionOpts []session.ManagerOpt
	if cfg.Sessions.IdleTimeout != "" {
		d, err := time.ParseDuration(cfg.Sessions.IdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing idle_timeout: %w", err)
		}
		sessionOpts = append(sessionOpts, session.WithIdleTimeout(d))
	}
	if len(cfg.Sessions.RestrictedNames) > 0 {
		sessionOpts = append(sessionOpts, session.WithRestrictedNames(cfg.Sessions.RestrictedNames))
	}
	sessions := session.NewManager(world, stores.Characters, stores.Races, sched, sessionOpts...)

	combatMgr := combat.NewManager(world, sessions, events)
	dispatcher := commands.NewDispatcher(world, combatMgr, sessions)
	sessions.Bind(dispatcher, combatMgr)

	popMgr := population.NewManager(world, stores.SpawnPolicies, events)

	// Stage order within a tick: combat rounds, then regeneration, then
	// spawning and mobility, then session bookkeeping.
	sched.SetManagers([]driver.Manager{
		combatMgr,
		world,
		popMgr,
		sessions,
	})

	snaps, err := snapshot.NewManager(cfg.Snapshots.Path, world, sched, stores.Characters, sessions, combatMgr)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot manager: %w", err)
	}
	if err := snaps.EnsureBaseline(); err != nil {
		return nil, fmt.Errorf("writing baseline snapshot: %w", err)
	}

	controller := control.NewController(natsServer, sched, world, snaps)

	cm := listener.NewConnectionManager(sessions)
	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		lst, err := l.BuildListener(cm)
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("listener-%d", i)] = lst
	}

	return service.WorkerList{
		"nats":      natsServer,
		"driver":    sched,
		"sessions":  sessions,
		"control":   controller,
		"listeners": &listeners,
	}, nil
}
