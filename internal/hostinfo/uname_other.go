//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package hostinfo

func uname() (sysname, release, version, machine string, ok bool) {
	return "", "", "", "", false
}
