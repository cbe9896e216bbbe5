package terminal

import (
	"strconv"

	"github.com/google/uuid"
)

// ID derives the surrogate terminal id. A positive pid (usually the shell's)
// gives a stable id across hook invocations; otherwise a random one is made.
func ID(pid int) string {
	if pid > 0 {
		return "pid-" + strconv.Itoa(pid)
	}
	return "term-" + uuid.NewString()
}
