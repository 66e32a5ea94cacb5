package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"
)

// ReadFixes parses NMEA lines from r and calls publish for every RMC
// sentence until r fails or ctx is cancelled. Malformed or partial
// sentences are skipped; other sentence types are ignored.
func ReadFixes(ctx context.Context, r io.Reader, publish func(Fix)) error {
	reader := bufio.NewReader(r)

	for ctx.Err() == nil {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("gps: read: %w", err)
		}

		line = strings.TrimSpace(line)
		// NMEA sentences start with '$'
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			log.Debugf("gps: NMEA parse error: %v (line: %q)", err, line)
			continue
		}

		if m, ok := sentence.(nmea.RMC); ok {
			publish(FromRMC(m))
		}
	}
	return nil
}
