package main

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// setupLogging sends diagnostics to out; debug enables the attribute-level
// messages of the enumerator.
func setupLogging(out io.Writer, debug bool) {
	log.SetOutput(out)
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: !debug,
		FullTimestamp:    true,
	})
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
