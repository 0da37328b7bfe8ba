package provision

import (
	"context"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
)

// Namespace hints select the mount directory template on client hosts.
const (
	NamespaceDefault     = "/run/dfuse/*"
	NamespaceConstrained = "/run/dfuse_vm/*"
)

// Pool identifies a storage pool.
type Pool struct {
	Label string
}

// Container identifies a POSIX container inside a pool.
type Container struct {
	Pool  Pool
	Label string
}

// Provider creates and destroys pools and containers.
type Provider interface {
	CreatePool(ctx context.Context) (Pool, error)
	CreateContainer(ctx context.Context, pool Pool) (Container, error)
	SetAttributes(ctx context.Context, cont Container, attrs []cachemode.Attribute) error
	DestroyContainer(ctx context.Context, cont Container) error
	DestroyPool(ctx context.Context, pool Pool) error
}

// ClientHandle describes a filesystem client mount on a host set. The cache
// toggles may be changed until Start is called.
type ClientHandle struct {
	Hosts            []string
	MountDir         string
	DisableWriteback bool
	DisableCaching   bool

	started bool
	// mounted lists the hosts on which dfuse came up; Stop unmounts only these.
	mounted []string
}

// Started reports whether the client is running on at least one host.
func (h *ClientHandle) Started() bool { return h != nil && h.started }

// MountedHosts returns the hosts on which dfuse is running.
func (h *ClientHandle) MountedHosts() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.mounted...)
}

// Controller mounts the filesystem client on the client hosts.
type Controller interface {
	Mount(hosts []string, namespaceHint string) (*ClientHandle, error)
	Start(ctx context.Context, h *ClientHandle, pool Pool, cont Container) error
	Stop(ctx context.Context, h *ClientHandle) error
}

// NamespaceHint returns the mount template for the host class.
func NamespaceHint(constrained bool) string {
	if constrained {
		return NamespaceConstrained
	}
	return NamespaceDefault
}
