package log

// Structured logging attribute keys.
const (
	Args     = "args"
	Cmd      = "cmd"
	Code     = "code"
	Dir      = "dir"
	Dst      = "dst"
	Duration = "duration"
	Error    = "error"
	From     = "from"
	Handle   = "handle"
	Op       = "op"
	Path     = "path"
	Pid      = "pid"
	Reason   = "reason"
	Signal   = "signal"
	Src      = "src"
	State    = "state"
	Target   = "target"
	Addr     = "addr"
)
