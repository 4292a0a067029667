// Entry point
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

	"go-imcs/cmd"
	"go-imcs/game"
	"go-imcs/proto"
	"go-imcs/store"
	"go-imcs/web"
)

func main() {
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] <port> <admin-password>\n",
			os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	config := cmd.LoadConf()

	port, err := strconv.ParseUint(flag.Arg(0), 10, 16)
	if err != nil {
		log.Fatalln("Invalid port:", flag.Arg(0))
	}
	config.Proto.Port = uint(port)
	adminPassword := flag.Arg(1)

	// Bring the on-disk state up to the current version
	s, err := store.Open(config.Data)
	if err != nil {
		log.Fatal(err)
	}

	// Ask a predecessor server, if any, to cede the port
	if err := proto.Takeover(config.Proto.Port, adminPassword); err != nil {
		log.Fatal(err)
	}

	st, err := cmd.MakeState(s)
	if err != nil {
		log.Fatal(err)
	}
	if err := st.SetAdmin(adminPassword); err != nil {
		log.Fatal(err)
	}
	st.Driver = game.MakeRelay()

	// Allow TCP connections
	proto.Prepare(st, config)

	// Optionally allow websocket connections
	web.Prepare(st, config)

	// Launch the server
	st.Start(config)
}
