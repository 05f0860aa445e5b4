//go:build !unix

package simulator

import "os/exec"

// killProcessGroupOnCancel keeps exec's default cancellation, which kills
// only the simulator process itself.
func killProcessGroupOnCancel(cmd *exec.Cmd) {}
