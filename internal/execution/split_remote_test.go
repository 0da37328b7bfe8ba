package execution

import (
	"context"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/remote"
	helpers "git.home.luguber.info/inful/cachebuild/internal/testutil/testutils"
)

// splitRemote fails the command on one host and passes it on the rest.
type splitRemote struct {
	*helpers.FakeRemote
	failHost string
}

func (s *splitRemote) Run(ctx context.Context, hosts []string, command string, timeout time.Duration) (remote.Result, error) {
	if _, err := s.FakeRemote.Run(ctx, hosts, command, timeout); err != nil {
		return remote.Result{}, err
	}
	res := remote.Result{}
	for _, h := range hosts {
		hr := remote.HostResult{Host: h}
		if h == s.failHost {
			hr.ExitCode = 1
			hr.Output = "boom\n"
		}
		res.Hosts = append(res.Hosts, hr)
	}
	return res, nil
}
