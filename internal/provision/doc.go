// Package provision creates the storage a run builds on and mounts it on the
// client hosts.
//
// Provider manages the pool and POSIX container lifecycle; Controller starts and
// stops the caching filesystem client. The DAOS implementations drive the dmg,
// daos, dfuse and fusermount3 command line tools through a remote.Executor so the
// same code works over SSH and on a single local node.
package provision
