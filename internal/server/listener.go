package server

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// listen builds a non-blocking IPv4 TCP listening socket bound to port
// on all interfaces, with SO_REUSEADDR set and a backlog of
// unix.SOMAXCONN. The socket is created through golang.org/x/sys/unix
// because Go's net package does not expose the raw fd an epoll loop
// needs to drive directly.
//
// It returns the bound fd and the port actually bound, which differs
// from the requested port when port is 0 (the kernel picks an
// ephemeral one), used by tests that need a guaranteed-free port.
func listen(port int) (fd int, boundPort int, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, 0, fmt.Errorf("server: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, 0, fmt.Errorf("server: setsockopt SO_REUSEADDR: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, 0, fmt.Errorf("server: bind port %d: %w", port, err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, 0, fmt.Errorf("server: listen: %w", err)
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return -1, 0, fmt.Errorf("server: getsockname: %w", err)
	}
	v4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		unix.Close(fd)
		return -1, 0, fmt.Errorf("server: unexpected sockaddr type %T", sa)
	}

	return fd, v4.Port, nil
}

// acceptAll drains every pending connection on listenFD, invoking
// accept for each. It stops at the first EAGAIN/EWOULDBLOCK, which is
// how a non-blocking listening socket reports "no more
// connections right now" rather than an error.
func acceptAll(listenFD int, accept func(fd int, remoteAddr string)) error {
	for {
		nfd, sa, err := unix.Accept(listenFD)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		if err := unix.SetNonblock(nfd, true); err != nil {
			unix.Close(nfd)
			continue
		}

		accept(nfd, formatSockaddr(sa))
	}
}

func formatSockaddr(sa unix.Sockaddr) string {
	v4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d.%d:%d", v4.Addr[0], v4.Addr[1], v4.Addr[2], v4.Addr[3], v4.Port)
}
