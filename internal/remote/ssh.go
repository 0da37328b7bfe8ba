package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sync/errgroup"
)

// SSHConfig controls how SSHExecutor reaches client hosts.
type SSHConfig struct {
	User           string
	Port           int
	KeyFile        string
	KnownHostsFile string
	// InsecureIgnoreHostKey skips host key verification (lab clusters only).
	InsecureIgnoreHostKey bool
	DialTimeout           time.Duration
	TailBytes             int
}

// SSHExecutor runs commands over SSH, one session per host, in parallel.
type SSHExecutor struct {
	cfg    SSHConfig
	client *ssh.ClientConfig
	dialer net.Dialer
}

// NewSSHExecutor builds the client configuration once; key and known-hosts files
// are read here so misconfiguration surfaces before any pipeline step runs.
func NewSSHExecutor(cfg SSHConfig) (*SSHExecutor, error) {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if !cfg.InsecureIgnoreHostKey {
		path := cfg.KnownHostsFile
		if path == "" {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return nil, fmt.Errorf("resolve known_hosts: %w", herr)
			}
			path = home + "/.ssh/known_hosts"
		}
		hostKeys, err = knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %s: %w", path, err)
		}
	}

	return &SSHExecutor{
		cfg: cfg,
		client: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKeys,
			Timeout:         cfg.DialTimeout,
		},
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}, nil
}

func authMethods(cfg SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		} else {
			slog.Warn("SSH agent unavailable", "socket", sock, "error", err)
		}
	}
	if len(methods) == 0 {
		return nil, errors.New("no ssh authentication available: set a key file or SSH_AUTH_SOCK")
	}
	return methods, nil
}

// Run implements Executor.
func (e *SSHExecutor) Run(ctx context.Context, hosts []string, command string, timeout time.Duration) (Result, error) {
	if len(hosts) == 0 {
		return Result{}, ErrNoHosts
	}

	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	results := make([]HostResult, len(hosts))
	var g errgroup.Group
	for i, host := range hosts {
		g.Go(func() error {
			results[i] = e.runHost(ctx, runCtx, host, command)
			return nil
		})
	}
	_ = g.Wait()

	return aggregate(results), nil
}

func (e *SSHExecutor) runHost(parent, ctx context.Context, host, command string) HostResult {
	hr := HostResult{Host: host, ExitCode: -1}
	addr := net.JoinHostPort(host, strconv.Itoa(e.cfg.Port))

	conn, err := e.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		hr.fail(parent, ctx, fmt.Errorf("dial %s: %w", addr, err))
		return hr
	}
	// The handshake, session setup and command all run on conn; closing it on
	// expiry unblocks whichever of them is waiting.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, e.client)
	if err != nil {
		_ = conn.Close()
		hr.fail(parent, ctx, fmt.Errorf("ssh handshake %s: %w", addr, err))
		return hr
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		hr.fail(parent, ctx, fmt.Errorf("ssh session %s: %w", host, err))
		return hr
	}
	defer func() { _ = session.Close() }()

	out := newTailBuffer(e.cfg.TailBytes)
	session.Stdout = out
	session.Stderr = out

	if err := session.Start(command); err != nil {
		hr.fail(parent, ctx, fmt.Errorf("start on %s: %w", host, err))
		return hr
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = client.Close()
		<-done
		hr.Output = out.String()
		hr.fail(parent, ctx, nil)
		return hr
	}

	hr.Output = out.String()
	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		hr.ExitCode = 0
	case errors.As(err, &exitErr):
		hr.ExitCode = exitErr.ExitStatus()
	case ctx.Err() != nil:
		hr.fail(parent, ctx, err)
	default:
		hr.Err = err
	}
	return hr
}

// fail records why the host did not complete. Expiry of the step timeout is a
// timeout, cancellation of parent is an error, anything else keeps err.
func (hr *HostResult) fail(parent, ctx context.Context, err error) {
	switch {
	case deadlineHit(parent, ctx):
		hr.TimedOut = true
	case parent.Err() != nil:
		hr.Err = parent.Err()
	default:
		hr.Err = err
	}
}
