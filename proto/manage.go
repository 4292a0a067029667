// TCP interface
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
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go-imcs"
	"go-imcs/cmd"
)

// How long to keep retrying the bind while a predecessor server
// drains its games and releases the port.
const bindPatience = 60 * time.Second

type Listener struct {
	conn net.Listener
	port uint
}

func (*Listener) String() string {
	return "TCP Handler"
}

// Initialise the listener, unless it has already been initialised.
// A predecessor that was asked to stop holds the port until its
// in-flight games finish, so an in-use address is retried for a
// while before giving up.
func (t *Listener) init() {
	if t.conn != nil {
		return
	}

	var err error
	tcp := fmt.Sprintf(":%d", t.port)
	deadline := time.Now().Add(bindPatience)
	for {
		t.conn, err = net.Listen("tcp", tcp)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.EADDRINUSE) || time.Now().After(deadline) {
			log.Fatal(err)
		}
		time.Sleep(time.Second / 2)
	}

	if t.port == 0 {
		// Extract the port the operating system picked, since
		// port 0 is redirected to a random open port
		addr := t.conn.Addr().String()
		i := strings.LastIndexByte(addr, ':')
		if i == -1 || i+1 == len(addr) {
			log.Fatal("Invalid address ", addr)
		}
		port, err := strconv.ParseUint(addr[i+1:], 10, 16)
		if err != nil {
			log.Fatal("Unexpected error ", err)
		}
		t.port = uint(port)
	}
}

func (t *Listener) Start(st *cmd.State, conf *cmd.Conf) {
	t.init()

	imcs.Debug.Printf("Accepting connections on :%d", t.port)
	for {
		conn, err := t.conn.Accept()
		if err != nil {
			return
		}
		go MakeClient(conn, conf).Connect(st)
	}
}

func (t *Listener) Port() uint {
	return t.port
}

func (t *Listener) Shutdown() {
	if t.conn == nil {
		return
	}
	if err := t.conn.Close(); err != nil {
		log.Print(err)
	}
}

func MakeListener(port uint) *Listener {
	return &Listener{port: port}
}

// Prepare registers the TCP listener on the configured port.
func Prepare(st *cmd.State, conf *cmd.Conf) {
	st.Manage(MakeListener(conf.Proto.Port))
}
