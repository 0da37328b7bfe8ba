package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/cachebuild/internal/build"
	"git.home.luguber.info/inful/cachebuild/internal/config"
	"git.home.luguber.info/inful/cachebuild/internal/events"
	"git.home.luguber.info/inful/cachebuild/internal/eventstore"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/metrics"
	"git.home.luguber.info/inful/cachebuild/internal/provision"
	"git.home.luguber.info/inful/cachebuild/internal/remote"
	"git.home.luguber.info/inful/cachebuild/internal/source"
)

// app holds the wired collaborators of a run-capable command.
type app struct {
	cfg          *config.Config
	orchestrator *build.Orchestrator
	registry     *prom.Registry
	closers      []func() error
}

func newExecutor(cfg *config.Config) (remote.Executor, error) {
	if cfg.Transport.Type == config.TransportLocal {
		e := remote.NewLocalExecutor()
		if cfg.Transport.OutputTailBytes > 0 {
			e.TailBytes = cfg.Transport.OutputTailBytes
		}
		return e, nil
	}

	ssh := cfg.Transport.SSH
	e, err := remote.NewSSHExecutor(remote.SSHConfig{
		User:                  ssh.User,
		Port:                  ssh.Port,
		KeyFile:               ssh.KeyFile,
		KnownHostsFile:        ssh.KnownHostsFile,
		InsecureIgnoreHostKey: ssh.InsecureIgnoreHostKey,
		DialTimeout:           ssh.DialTimeout,
		TailBytes:             cfg.Transport.OutputTailBytes,
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRemote, "failed to configure ssh transport").Fatal().Build()
	}
	return e, nil
}

// newApp wires the orchestrator and its optional sinks from cfg.
func newApp(cfg *config.Config) (*app, error) {
	exec, err := newExecutor(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, registry: prom.NewRegistry()}
	provider := provision.NewDAOSProvider(exec, provision.DAOSProviderOptions{
		AdminHosts:  cfg.Hosts.Admin,
		PoolSize:    cfg.DAOS.PoolSize,
		LabelPrefix: cfg.DAOS.LabelPrefix,
		Timeout:     cfg.DAOS.AdminTimeout,
	})

	sinks := events.MultiSink{}
	if cfg.History.Enabled {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		sinks = append(sinks, eventstore.NewSink(store))
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:       cfg.Events.NATSURL,
			Subject:   cfg.Events.Subject,
			JetStream: cfg.Events.JetStream,
		})
		if err != nil {
			_ = a.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryRemote, "failed to connect event publisher").Build()
		}
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, pub)
	}

	a.orchestrator = build.NewOrchestrator(provider, provision.NewDfuseController(exec), exec).
		WithRecorder(metrics.NewPrometheusRecorder(a.registry)).
		WithSink(sinks).
		WithSourceURL(cfg.Source.URL)
	if cfg.Source.ResolveRevision {
		a.orchestrator.WithRevisionResolver(source.NewResolver(source.RemoteLister{}))
	}
	return a, nil
}

// request builds the orchestrator request for a scenario.
func (a *app) request(s config.Scenario) build.Request {
	return build.Request{
		Scenario:      s.Name,
		Mode:          s.Mode,
		Library:       s.Library,
		Hosts:         a.cfg.Hosts.Clients,
		Constrained:   s.Constrained || a.cfg.Hosts.Constrained,
		Prefix:        a.cfg.DAOS.Prefix,
		NamespaceHint: a.cfg.Run.Namespace,
		SourceRef:     a.cfg.Source.Ref,
		KeepOnFailure: a.cfg.Run.KeepOnFailure,
	}
}

// pushMetrics sends the registry to the configured Pushgateway. Failures are
// logged only.
func (a *app) pushMetrics(ctx context.Context, grouping map[string]string) {
	if a.cfg.Metrics.Pushgateway == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := metrics.Push(ctx, a.cfg.Metrics.Pushgateway, a.cfg.Metrics.Job, a.registry, grouping); err != nil {
		slog.Warn("Failed to push metrics", "gateway", a.cfg.Metrics.Pushgateway, "error", err)
	}
}

// Close releases sinks in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
