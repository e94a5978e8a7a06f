package transport

import (
	"fmt"
)

// Op enumerates the fixed remote operations the coordinator performs.
type Op string

const (
	OpConnectTest Op = "connect_test"
	OpWriteFile   Op = "write_file"
	OpStart       Op = "start"
	OpStop        Op = "stop"
	OpPoll        Op = "poll"
	OpLogTail     Op = "log_tail"
)

// NotRunningMarker is emitted by the poll command when the solver process
// is absent on the target.
const NotRunningMarker = "NOT_RUNNING"

// Command is a typed remote request: the operation it represents plus the
// shell script realizing it. Building commands through constructors keeps
// ad hoc command strings out of the coordinator.
type Command struct {
	Op     Op
	Script string
}

// ConnectTest probes the target with a trivial echo.
func ConnectTest() Command {
	return Command{Op: OpConnectTest, Script: "echo 'Connection test'"}
}

// WriteRemoteFile writes content to path on the target. A quoted heredoc
// keeps the payload literal regardless of shell metacharacters inside it.
func WriteRemoteFile(path, content string) Command {
	return Command{
		Op:     OpWriteFile,
		Script: fmt.Sprintf("cat > %s <<'KEYFLEET_EOF'\n%s\nKEYFLEET_EOF", path, content),
	}
}

// StartSolver makes the binary executable and launches it detached, with
// output redirected to logFile and the pid recorded in pidFile.
func StartSolver(binary, logFile, pidFile string) Command {
	return Command{
		Op: OpStart,
		Script: fmt.Sprintf("chmod +x ~/%s && nohup ~/%s > %s 2>&1 & echo $! > %s",
			binary, binary, logFile, pidFile),
	}
}

// StopSolver kills any process matching the binary name.
func StopSolver(binary string) Command {
	return Command{Op: OpStop, Script: fmt.Sprintf("pkill -f %s", binary)}
}

// PollProcess checks whether the binary is running; prints NOT_RUNNING if
// the process is absent (an exit code cannot distinguish "not running"
// from a transport failure, the marker can).
func PollProcess(binary string) Command {
	return Command{
		Op: OpPoll,
		Script: fmt.Sprintf("ps aux | grep %s | grep -v grep || echo '%s'",
			binary, NotRunningMarker),
	}
}

// TailLog fetches the last lines of the solver log.
func TailLog(logFile string, lines int) Command {
	if lines <= 0 {
		lines = 5
	}
	return Command{Op: OpLogTail, Script: fmt.Sprintf("tail -n %d %s", lines, logFile)}
}
