//go:build windows

package main

import "os/exec"

func configureDaemonProc(cmd *exec.Cmd) {
	// No Setsid on Windows; the child already survives the parent.
}
