package logger

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Setup configures the package level charm logger used across wordmend.
// Debug mode adds timestamps and caller info.
func Setup(debug bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(log.TextFormatter)
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		log.SetReportCaller(true)
		log.SetTimeFormat(time.TimeOnly)
		return
	}
	log.SetLevel(log.InfoLevel)
	log.SetReportTimestamp(false)
	log.SetReportCaller(false)
}
