package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/logfields"
	"git.home.luguber.info/inful/cachebuild/internal/observability"
	"git.home.luguber.info/inful/cachebuild/internal/remote"
)

// DefaultAdminTimeout bounds each dmg/daos management command.
const DefaultAdminTimeout = 2 * time.Minute

// DAOSProvider implements Provider with the dmg and daos tools run on admin hosts.
type DAOSProvider struct {
	remote      remote.Executor
	adminHosts  []string
	poolSize    string
	labelPrefix string
	timeout     time.Duration
	newID       func() string
}

// DAOSProviderOptions configures a DAOSProvider.
type DAOSProviderOptions struct {
	AdminHosts  []string
	PoolSize    string
	LabelPrefix string
	Timeout     time.Duration
}

// NewDAOSProvider returns a provider issuing commands on opts.AdminHosts.
func NewDAOSProvider(r remote.Executor, opts DAOSProviderOptions) *DAOSProvider {
	if opts.PoolSize == "" {
		opts.PoolSize = "80G"
	}
	if opts.LabelPrefix == "" {
		opts.LabelPrefix = "cachebuild"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAdminTimeout
	}
	return &DAOSProvider{
		remote:      r,
		adminHosts:  opts.AdminHosts,
		poolSize:    opts.PoolSize,
		labelPrefix: opts.LabelPrefix,
		timeout:     opts.Timeout,
		newID:       func() string { return uuid.NewString()[:8] },
	}
}

// CreatePool implements Provider.
func (p *DAOSProvider) CreatePool(ctx context.Context) (Pool, error) {
	pool := Pool{Label: p.labelPrefix + "-pool-" + p.newID()}
	cmd := fmt.Sprintf("dmg pool create --size=%s %s", p.poolSize, pool.Label)
	if err := p.run(ctx, "create pool", cmd); err != nil {
		return Pool{}, err
	}
	observability.InfoContext(ctx, "Pool created", logfields.Pool(pool.Label))
	return pool, nil
}

// CreateContainer implements Provider.
func (p *DAOSProvider) CreateContainer(ctx context.Context, pool Pool) (Container, error) {
	cont := Container{Pool: pool, Label: p.labelPrefix + "-cont-" + p.newID()}
	cmd := fmt.Sprintf("daos container create --type=POSIX %s %s", pool.Label, cont.Label)
	if err := p.run(ctx, "create container", cmd); err != nil {
		return Container{}, err
	}
	observability.InfoContext(ctx, "Container created", logfields.Pool(pool.Label), logfields.Container(cont.Label))
	return cont, nil
}

// SetAttributes implements Provider. Attributes are applied in order.
func (p *DAOSProvider) SetAttributes(ctx context.Context, cont Container, attrs []cachemode.Attribute) error {
	for _, a := range attrs {
		cmd := fmt.Sprintf("daos container set-attr %s %s %s %s", cont.Pool.Label, cont.Label, a.Name, a.Value)
		if err := p.run(ctx, "set container attribute "+a.Name, cmd); err != nil {
			return err
		}
	}
	return nil
}

// DestroyContainer implements Provider.
func (p *DAOSProvider) DestroyContainer(ctx context.Context, cont Container) error {
	return p.run(ctx, "destroy container", fmt.Sprintf("daos container destroy --force %s %s", cont.Pool.Label, cont.Label))
}

// DestroyPool implements Provider.
func (p *DAOSProvider) DestroyPool(ctx context.Context, pool Pool) error {
	return p.run(ctx, "destroy pool", fmt.Sprintf("dmg pool destroy --force %s", pool.Label))
}

func (p *DAOSProvider) run(ctx context.Context, what, cmd string) error {
	if len(p.adminHosts) == 0 {
		return ferrors.ProvisionError(what + ": no admin hosts configured").Build()
	}
	res, err := p.remote.Run(ctx, p.adminHosts, cmd, p.timeout)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryProvision, what).
			Fatal().
			WithContext("command", cmd).
			Build()
	}
	if !res.Passed {
		return ferrors.ProvisionError(what+" failed").
			WithContext("command", cmd).
			WithContext("hosts", strings.Join(res.FailedHosts(), ",")).
			WithContext("output", firstOutput(res)).
			Build()
	}
	return nil
}

// DfuseController implements Controller with the dfuse client.
type DfuseController struct {
	remote  remote.Executor
	timeout time.Duration
	newID   func() string
}

// NewDfuseController returns a controller issuing commands through r.
func NewDfuseController(r remote.Executor) *DfuseController {
	return &DfuseController{
		remote:  r,
		timeout: DefaultAdminTimeout,
		newID:   func() string { return uuid.NewString()[:8] },
	}
}

// Mount reserves a mount directory for hosts. namespaceHint is a directory
// template; a trailing "*" is replaced with a unique suffix.
func (c *DfuseController) Mount(hosts []string, namespaceHint string) (*ClientHandle, error) {
	if len(hosts) == 0 {
		return nil, ferrors.MountError("no client hosts").Build()
	}
	hint := strings.TrimSpace(namespaceHint)
	if hint == "" {
		return nil, ferrors.MountError("empty namespace hint").Build()
	}
	dir := hint
	if strings.HasSuffix(hint, "*") {
		dir = strings.TrimSuffix(hint, "*") + c.newID()
	}
	return &ClientHandle{Hosts: append([]string(nil), hosts...), MountDir: dir}, nil
}

// Start creates the mount point and launches dfuse on every client host.
func (c *DfuseController) Start(ctx context.Context, h *ClientHandle, pool Pool, cont Container) error {
	if h == nil {
		return ferrors.MountError("start: nil client handle").Build()
	}
	if h.started {
		return ferrors.MountError("start: client already running").WithContext("mount", h.MountDir).Build()
	}
	if err := c.run(ctx, h.Hosts, "create mount point", "mkdir -p "+h.MountDir); err != nil {
		return err
	}

	cmd := StartCommand(h, pool, cont)
	res, runErr := c.remote.Run(ctx, h.Hosts, cmd, c.timeout)
	// A partial start still leaves mounts behind that Stop has to remove.
	for _, hr := range res.Hosts {
		if hr.Passed() {
			h.mounted = append(h.mounted, hr.Host)
		}
	}
	h.started = len(h.mounted) > 0
	if err := mountFailure("start dfuse", cmd, res, runErr); err != nil {
		return err
	}
	observability.InfoContext(ctx, "Filesystem client started",
		logfields.MountDir(h.MountDir),
		logfields.Pool(pool.Label),
		logfields.Container(cont.Label),
		logfields.Hosts(h.Hosts))
	return nil
}

// Stop unmounts dfuse on every client host.
func (c *DfuseController) Stop(ctx context.Context, h *ClientHandle) error {
	if !h.Started() {
		return nil
	}
	if err := c.run(ctx, h.mounted, "stop dfuse", "fusermount3 -u "+h.MountDir); err != nil {
		return err
	}
	h.started = false
	h.mounted = nil
	return nil
}

// StartCommand renders the dfuse invocation for h.
func StartCommand(h *ClientHandle, pool Pool, cont Container) string {
	var b strings.Builder
	fmt.Fprintf(&b, "dfuse --mountpoint=%s --pool=%s --cont=%s", h.MountDir, pool.Label, cont.Label)
	if h.DisableWriteback {
		b.WriteString(" --disable-wb-cache")
	}
	if h.DisableCaching {
		b.WriteString(" --disable-caching")
	}
	return b.String()
}

func (c *DfuseController) run(ctx context.Context, hosts []string, what, cmd string) error {
	res, err := c.remote.Run(ctx, hosts, cmd, c.timeout)
	return mountFailure(what, cmd, res, err)
}

func mountFailure(what, cmd string, res remote.Result, err error) error {
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryMount, what).
			Fatal().
			WithContext("command", cmd).
			Build()
	}
	if !res.Passed {
		return ferrors.MountError(what+" failed").
			WithContext("command", cmd).
			WithContext("hosts", strings.Join(res.FailedHosts(), ",")).
			WithContext("output", firstOutput(res)).
			Build()
	}
	return nil
}

func firstOutput(res remote.Result) string {
	for _, h := range res.Hosts {
		if !h.Passed() && strings.TrimSpace(h.Output) != "" {
			return strings.TrimSpace(h.Output)
		}
	}
	return ""
}
