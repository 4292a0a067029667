// Configuration
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

package cmd

import (
	"flag"
	"io"
	"log"
	"os"
	"time"

	"go-imcs"

	"github.com/BurntSushi/toml"
)

const defconf = "go-imcs.toml"

func init() {
	def := &defaultConfig

	flag.StringVar(&def.Data, "data", def.Data,
		"Directory to use for the on-disk state")

	flag.UintVar(&def.Proto.Port, "tcpport", def.Proto.Port,
		"Port to use for TCP connections")

	flag.UintVar(&def.Game.Time, "time", def.Game.Time,
		"Clock budget per player, in milliseconds")

	flag.BoolVar(&def.Web.Enabled, "websocket", def.Web.Enabled,
		"Enable the websocket transport")
	flag.UintVar(&def.Web.Port, "wwwport", def.Web.Port,
		"Port to use for the websocket transport")

	flag.BoolVar(&debug, "debug", debug, "Enable debug output")
	flag.BoolVar(&silent, "silent", silent, "Disable verbose output")
	flag.BoolVar(&dump, "dump-config", dump, "Dump configuration to standard output")
	flag.StringVar(&cfile, "conf", cfile, "Path to configuration file")
}

type ProtoConf struct {
	Port uint `toml:"port"`
}

type GameConf struct {
	Time uint `toml:"time"`
}

type WebConf struct {
	Enabled bool `toml:"enabled"`
	Port    uint `toml:"port"`
}

type Conf struct {
	Data  string    `toml:"data"`
	Proto ProtoConf `toml:"proto"`
	Game  GameConf  `toml:"game"`
	Web   WebConf   `toml:"web"`
}

// Clock returns the per-player time budget for a game.
func (c *Conf) Clock() time.Duration {
	return time.Duration(c.Game.Time) * time.Millisecond
}

var defaultConfig = Conf{
	Data: "imcs.d",
	Proto: ProtoConf{
		Port: 3589,
	},
	Game: GameConf{
		Time: 300000,
	},
	Web: WebConf{
		Enabled: false,
		Port:    8080,
	},
}

var (
	debug  = false
	silent = false
	dump   = false
	cfile  = defconf
)

// LoadConf returns the effective configuration: the defaults as
// adjusted by the command line flags, overlaid with the configuration
// file if one exists.
func LoadConf() *Conf {
	c := &defaultConfig

	file, err := os.Open(cfile)
	if err != nil {
		if !os.IsNotExist(err) || cfile != defconf {
			log.Fatal(err)
		}
	} else {
		defer file.Close()
		if _, err := toml.NewDecoder(file).Decode(c); err != nil {
			log.Fatal(err)
		}
	}

	switch {
	case debug:
		imcs.Debug.SetOutput(os.Stderr)
		log.Default().SetFlags(log.LstdFlags | log.Lshortfile)
		imcs.Debug.Println("Debug logging has been enabled")
	case silent:
		log.Default().SetOutput(io.Discard)
	}

	if dump {
		if err := c.Dump(os.Stdout); err != nil {
			log.Fatalln("Failed to dump configuration:", err)
		}
		os.Exit(0)
	}

	return c
}

// Dump serialises the configuration into a writer.
func (c *Conf) Dump(wr io.Writer) error {
	return toml.NewEncoder(wr).Encode(c)
}
