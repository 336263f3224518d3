package process

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// procReadFile allows tests to stub reading /proc/PID/comm.
var procReadFile = os.ReadFile

// commForPID is the fallback used when gopsutil cannot resolve a name.
// It returns an empty string when /proc is unavailable.
func commForPID(pid int32) string {
	if pid <= 0 {
		return ""
	}
	path := filepath.Join("/proc", strconv.FormatInt(int64(pid), 10), "comm")
	data, err := procReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// isGone reports whether err means the process exited.
func isGone(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) || errors.Is(err, os.ErrNotExist)
}
