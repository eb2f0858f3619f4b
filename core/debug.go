package core

// DebugWriter is a function type for writing log lines. Targets install
// one that knows their debug channel (UART, USB CDC).
type DebugWriter func(string)

// Log levels, most verbose first. A line is emitted when its level is at
// or above the configured threshold.
const (
	LevelTrace uint8 = iota
	LevelInfo
	LevelWarn
)

var (
	// debugPrintln is the installed writer. No-op by default so core code
	// can log unconditionally.
	debugPrintln DebugWriter = func(s string) {}

	// logLevel is the emission threshold. Trace is off by default; it is
	// chatty (one line per measurement, one per watchdog feed).
	logLevel uint8 = LevelInfo

	// Async log output channel, nil until InitAsyncLog.
	logChan chan string
)

// SetDebugWriter sets the platform-specific log output function.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetLogLevel sets the emission threshold.
func SetLogLevel(level uint8) {
	logLevel = level
}

// TraceEnabled reports whether trace lines are emitted. Hot paths check it
// before building a line.
func TraceEnabled() bool {
	return logLevel <= LevelTrace
}

// InitAsyncLog starts the background log writer goroutine. With it running,
// log calls enqueue instead of blocking on the serial write; a full queue
// drops the line.
func InitAsyncLog() {
	logChan = make(chan string, 16)
	go logWorker()
}

func logWorker() {
	for msg := range logChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// Trace emits a verbose diagnostic line.
func Trace(msg string) {
	logLine(LevelTrace, "trace: "+msg)
}

// Info emits a normal operational line.
func Info(msg string) {
	logLine(LevelInfo, "info: "+msg)
}

// Warn emits a problem report.
func Warn(msg string) {
	logLine(LevelWarn, "warn: "+msg)
}

func logLine(level uint8, line string) {
	if level < logLevel || debugPrintln == nil {
		return
	}
	if logChan != nil {
		select {
		case logChan <- line:
		default:
			// Queue full, drop the line rather than stall the caller.
		}
		return
	}
	debugPrintln(line)
}
