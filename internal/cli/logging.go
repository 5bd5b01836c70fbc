package cli

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
)

// EnvLogFile names the file logs go to while the interactive view runs.
const EnvLogFile = "POSTS_LOG_FILE"

// viewLogger returns a logger that never writes to the terminal. A base
// logger already writing elsewhere is kept; otherwise logs go to
// POSTS_LOG_FILE or are dropped. Failures still reach the user as alerts.
func viewLogger(base *log.Logger) (*log.Logger, func(), error) {
	if base.Out != os.Stderr && base.Out != os.Stdout {
		return base, func() {}, nil
	}

	l := log.New()
	l.SetLevel(base.GetLevel())
	l.SetFormatter(base.Formatter)
	l.SetOutput(io.Discard)

	path := os.Getenv(EnvLogFile)
	if path == "" {
		return l, func() {}, nil
	}
	f, err := tea.LogToFile(path, "posts")
	if err != nil {
		return nil, nil, err
	}
	l.SetOutput(f)
	return l, func() { _ = f.Close() }, nil
}
