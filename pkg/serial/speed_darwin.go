//go:build darwin

package serial

import "golang.org/x/sys/unix"

func setSpeed(t *unix.Termios, speed uint32) {
	t.Ispeed = uint64(speed)
	t.Ospeed = uint64(speed)
}
