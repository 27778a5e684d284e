//go:build linux || darwin || freebsd || netbsd || openbsd

package hostinfo

import "golang.org/x/sys/unix"

func uname() (sysname, release, version, machine string, ok bool) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", "", "", "", false
	}
	return unix.ByteSliceToString(u.Sysname[:]),
		unix.ByteSliceToString(u.Release[:]),
		unix.ByteSliceToString(u.Version[:]),
		unix.ByteSliceToString(u.Machine[:]),
		true
}
