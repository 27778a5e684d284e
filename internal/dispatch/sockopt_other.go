//go:build !unix

package dispatch

import "syscall"

func socketControl(broadcast bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
