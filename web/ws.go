// Websocket interface
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

package web

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"go-imcs"
	"go-imcs/cmd"
	"go-imcs/proto"

	"github.com/gorilla/websocket"
)

// adapted from https://github.com/gorilla/websocket/issues/282

// wsrwc is a read-write-closer over a websocket, so that a browser
// connection can speak the same line protocol as a TCP client.
type wsrwc struct {
	*websocket.Conn
	r io.Reader
}

// Convert a write call to a websocket message
func (c *wsrwc) Write(p []byte) (int, error) {
	err := c.WriteMessage(websocket.TextMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Convert a read call into a websocket query
func (c *wsrwc) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			// Advance to next message.
			var err error
			_, c.r, err = c.NextReader()
			if err != nil {
				return 0, err
			}
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			// At end of message.
			c.r = nil
			if n > 0 {
				return n, nil
			}
			// No data read, continue to next message.
			continue
		}
		return n, err
	}
}

type server struct {
	srv *http.Server
}

func (*server) String() string { return "Websocket Handler" }

func (w *server) Start(st *cmd.State, conf *cmd.Conf) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		}).Upgrade(rw, r, nil)
		if err != nil {
			imcs.Debug.Printf("Unable to upgrade connection: %s", err)
			return
		}

		imcs.Debug.Printf("New websocket connection from %s", conn.RemoteAddr())
		go proto.MakeClient(&wsrwc{Conn: conn}, conf).Connect(st)
	})

	w.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Web.Port),
		Handler: mux,
	}
	if err := w.srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Print(err)
	}
}

func (w *server) Shutdown() {
	if w.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.srv.Shutdown(ctx); err != nil {
		log.Print(err)
	}
}

// Prepare registers the websocket transport, if enabled.
func Prepare(st *cmd.State, conf *cmd.Conf) {
	if !conf.Web.Enabled {
		return
	}
	st.Manage(&server{})
}
