// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// command_sender sends command packets to a running rover, for bench tests
// without the operator station.
//
// Run:
//
//	go run ./cmd/command_sender -addr rover.local:12345 -f 1=0.5 -f 11=10 -count 20
package main

import (
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/command"
)

type fieldFlags command.Packet

func (f *fieldFlags) String() string {
	return fmt.Sprint(command.Packet(*f))
}

func (f *fieldFlags) Set(s string) error {
	idx, val, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("want INDEX=VALUE, got %q", s)
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= command.NumFields {
		return fmt.Errorf("field index %q out of range 0..%d", idx, command.NumFields-1)
	}
	v, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return fmt.Errorf("field %d: %w", i, err)
	}
	f[i] = float32(v)
	return nil
}

func main() {
	var fields fieldFlags
	addr := flag.String("addr", "127.0.0.1:12345", "rover command address")
	count := flag.Int("count", 1, "number of packets to send")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between packets")
	flag.Var(&fields, "f", "field value as INDEX=VALUE, repeatable")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		log.Fatalf("command_sender: dial %s: %v", *addr, err)
	}
	defer conn.Close()

	p := command.Packet(fields)
	for i := 0; i < *count; i++ {
		if err := command.WritePacket(conn, p); err != nil {
			log.Fatalf("command_sender: packet %d: %v", i, err)
		}
		log.Printf("sent packet %d: %v", i, p)
		if i+1 < *count {
			time.Sleep(*interval)
		}
	}
}
