// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// DefaultReadSize is the pipe read chunk size.
const DefaultReadSize = 65536

// Publisher receives every complete frame. telemetry.State implements it.
type Publisher interface {
	PublishFrame(frame []byte)
}

// CaptureArgs returns the libcamera-vid arguments for an endless MJPEG
// stream on stdout.
func CaptureArgs(width, height int) []string {
	return []string{
		"--width", strconv.Itoa(width),
		"--height", strconv.Itoa(height),
		"--codec", "mjpeg",
		"--inline",
		"--timeout", "0",
		"-o", "-",
	}
}

// Producer runs the capture subprocess and publishes its frames.
type Producer struct {
	command  string
	args     []string
	readSize int
	pub      Publisher

	readFrames func(r io.Reader, readSize int, publish func([]byte)) (int, int64, error)
}

// NewProducer returns a producer for command with args. readSize <= 0
// selects DefaultReadSize.
func NewProducer(command string, args []string, readSize int, pub Publisher) *Producer {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	return &Producer{command: command, args: args, readSize: readSize, pub: pub, readFrames: ReadFrames}
}

// Run starts the subprocess and publishes frames until its stdout ends, a
// read fails or ctx is cancelled. The subprocess is always waited for. A
// stream that simply ends is not an error.
func (p *Producer) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, p.command, p.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("video: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("video: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("video: start %s: %w", p.command, err)
	}
	log.Infof("video: %s started (pid %d)", p.command, cmd.Process.Pid)

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		logStderr(p.command, stderr)
	}()

	frames, bytesRead, readErr := p.readFrames(stdout, p.readSize, p.pub.PublishFrame)
	if readErr != nil {
		// the child may still be writing; nothing reads its stdout anymore
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Warnf("video: kill %s: %v", p.command, err)
		}
	}

	// stderr must be drained before Wait closes the pipe
	<-stderrDone
	waitErr := cmd.Wait()

	log.Infof("video: capture ended after %d frames (%s)", frames, humanize.Bytes(uint64(bytesRead)))

	switch {
	case ctx.Err() != nil:
		return nil
	case readErr != nil:
		return fmt.Errorf("video: read: %w", readErr)
	case waitErr != nil:
		return fmt.Errorf("video: %s exited: %w", p.command, waitErr)
	}
	return nil
}

// ReadFrames reads r in readSize chunks and calls publish for every
// complete frame. It returns at EOF (nil error) or on the first read error.
func ReadFrames(r io.Reader, readSize int, publish func([]byte)) (frames int, total int64, err error) {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	dec := NewFrameDecoder()
	buf := make([]byte, readSize)

	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			for _, f := range dec.Push(buf[:n]) {
				publish(f)
				frames++
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				if dec.Pending() > 0 {
					log.Debugf("video: %d trailing bytes discarded", dec.Pending())
				}
				return frames, total, nil
			}
			return frames, total, rerr
		}
	}
}

func logStderr(name string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.WithField("process", name).Debug(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		log.Debugf("video: stderr: %v", err)
	}
}
