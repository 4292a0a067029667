// Operator tool: stop a running server
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

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"go-imcs/proto"
)

// Asks the server on the given port to shut down, using the same
// handshake a successor server uses to take the port over.  The
// server drains its in-flight games before exiting.
func main() {
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s <port> <admin-password>\n", os.Args[0])
		os.Exit(1)
	}

	port, err := strconv.ParseUint(flag.Arg(0), 10, 16)
	if err != nil {
		log.Fatalln("Invalid port:", flag.Arg(0))
	}

	if err := proto.Takeover(uint(port), flag.Arg(1)); err != nil {
		log.Fatal(err)
	}
}
