package main

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uilive"
)

// progressSink receives byte counts while an image is written and verified
type progressSink interface {
	Update(state writeState, done, total int64)
	Finish()
}

// progressReporter renders live progress on the terminal
type progressReporter struct {
	writer     *uilive.Writer
	verify     bool
	start      time.Time
	phaseStart time.Time
	phase      writeState
	lastUpdate time.Time
}

func newProgressReporter(out io.Writer, verify bool) *progressReporter {
	writer := uilive.New()
	writer.Out = out
	writer.Start()

	now := time.Now()
	return &progressReporter{
		writer:     writer,
		verify:     verify,
		start:      now,
		phaseStart: now,
		phase:      stateWrite,
	}
}

// overallPercent maps phase progress onto a single bar: writing covers the
// first half and verifying the second half when verification is enabled.
func overallPercent(state writeState, done, total int64, verify bool) float64 {
	if total <= 0 {
		return 0
	}
	fraction := float64(done) / float64(total)
	if fraction > 1 {
		fraction = 1
	}
	if !verify {
		return fraction * 100
	}
	if state == stateVerify {
		return 50 + fraction*50
	}
	return fraction * 50
}

func (p *progressReporter) Update(state writeState, done, total int64) {
	if state != p.phase {
		p.phase = state
		p.phaseStart = time.Now()
	} else if time.Since(p.lastUpdate) < time.Second && done != total {
		return
	}

	elapsed := time.Since(p.phaseStart)
	speed := 0.0
	if elapsed > 0 {
		speed = float64(done) / elapsed.Seconds()
	}

	totalStr := "unknown"
	if total > 0 {
		totalStr = formatBytes(total)
	}

	_, _ = fmt.Fprintf(p.writer, "%s: %s of %s (%.1f%%)\n",
		state, formatBytes(done), totalStr, overallPercent(state, done, total, p.verify))
	_, _ = fmt.Fprintf(p.writer, "Elapsed Time: %s\n", time.Since(p.start).Truncate(time.Second))
	_, _ = fmt.Fprintf(p.writer, "Estimated Time: %s\n", formatETA(done, total, elapsed))
	_, _ = fmt.Fprintf(p.writer, "Speed: %s\n", formatSpeed(speed))
	_ = p.writer.Flush()
	p.lastUpdate = time.Now()
}

func (p *progressReporter) Finish() {
	_ = p.writer.Flush()
	p.writer.Stop()
}
