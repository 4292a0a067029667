// Graceful takeover of a predecessor server
//
// Copyright (c) 2026  The go-imcs authors
//
// This file is part of go-imcs.
//
// go-imcs is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-imcs is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-imcs. If not, see
// <http://www.gnu.org/licenses/>

package proto

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"go-imcs"
)

// Takeover checks whether a predecessor server is listening on the
// loopback interface and, if so, logs in as admin and asks it to
// stop.  Returning nil means the port either was free or has been
// ceded; any deviation from the expected handshake is an error and
// the caller must not start the server.
func Takeover(port uint, adminPassword string) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		// Nobody there; the port is ours to take
		return nil
	}
	defer conn.Close()

	imcs.Debug.Println("Found a predecessor server on", addr)
	scanner := bufio.NewScanner(conn)

	expect := func(code string) error {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return fmt.Errorf("takeover: predecessor hung up awaiting %s", code)
		}
		line := scanner.Text()
		imcs.Debug.Println("predecessor >", line)
		if !strings.HasPrefix(line, code+" ") && line != code {
			return fmt.Errorf("takeover: expected %s, got %q", code, line)
		}
		return nil
	}
	send := func(line string) error {
		imcs.Debug.Println("predecessor <", line)
		_, err := fmt.Fprintf(conn, "%s\n", line)
		return err
	}

	if err := expect("100"); err != nil {
		return err
	}
	if err := send("me admin " + adminPassword); err != nil {
		return err
	}
	if err := expect("201"); err != nil {
		return err
	}
	if err := send("stop"); err != nil {
		return err
	}
	if err := expect("205"); err != nil {
		return err
	}
	return nil
}
