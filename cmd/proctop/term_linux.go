//go:build linux

package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// enableSingleView switches stdout to the alternate screen so every frame
// replaces the previous one. The returned func restores the terminal.
func enableSingleView(log *zap.Logger) func() {
	stdoutFD := int(os.Stdout.Fd())
	stdinFD := int(os.Stdin.Fd())
	if !term.IsTerminal(stdoutFD) {
		return func() {}
	}

	fmt.Print("\033[?1049h") // switch to alternate buffer
	fmt.Print("\033[?25l")   // hide cursor

	var restore []func()
	if term.IsTerminal(stdinFD) {
		if undoEcho, err := disableInputEcho(stdinFD); err != nil {
			log.Warn("unable to suppress stdin echo", zap.Error(err))
		} else if undoEcho != nil {
			restore = append(restore, undoEcho)
		}
	}

	return func() {
		for i := len(restore) - 1; i >= 0; i-- {
			restore[i]()
		}
		fmt.Print("\033[?25h")   // show cursor
		fmt.Print("\033[?1049l") // restore main buffer
	}
}

// disableInputEcho turns off stdin echo so the alternate-screen view stays clean.
func disableInputEcho(fd int) (func(), error) {
	termState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	updated := *termState
	updated.Lflag &^= unix.ECHO

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &updated); err != nil {
		return nil, err
	}

	return func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, termState)
	}, nil
}
