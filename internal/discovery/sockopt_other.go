//go:build windows

package discovery

import "syscall"

// reuseAddrControl is a no-op on platforms where golang.org/x/sys/unix's
// socket option constants aren't available; Windows already permits
// rebinding a UDP port with a fresh socket in most of these scenarios.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
