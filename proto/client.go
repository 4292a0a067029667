// Client Session Management
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
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go-imcs"
	"go-imcs/cmd"
	"go-imcs/game"
)

// Client ids only have to be unique within one server process.
var clients int64

// Client wraps a network connection into a command session.  All
// reads go through a single reader goroutine feeding the lines
// channel, so the stream can be consumed interchangeably by the
// command loop, the offer wait and a game driver without reordering
// or losing lines.
type Client struct {
	conf *cmd.Conf
	rwc  io.ReadWriteCloser
	id   int64

	// name is the authenticated player name, or "" while the
	// session is anonymous.  Only the session goroutine touches
	// it.
	name string

	iolock  sync.Mutex
	lines   chan string
	eof     chan struct{}
	quit    chan struct{}
	closing sync.Once

	// The accepter's channel is owned by the offerer once a match
	// is made; handoff suppresses the session's own close.
	handoff bool
}

func MakeClient(rwc io.ReadWriteCloser, conf *cmd.Conf) *Client {
	return &Client{
		conf:  conf,
		rwc:   rwc,
		id:    atomic.AddInt64(&clients, 1),
		lines: make(chan string),
		eof:   make(chan struct{}),
		quit:  make(chan struct{}),
	}
}

func (cli *Client) String() string {
	if cli.name == "" {
		return fmt.Sprintf("client %d", cli.id)
	}
	return fmt.Sprintf("client %d (%s)", cli.id, cli.name)
}

// Reader goroutine: every line of the connection passes through
// here, in order.  The unbuffered lines channel makes an unread line
// behave like unread socket data.
func (cli *Client) read() {
	scanner := bufio.NewScanner(cli.rwc)
	for scanner.Scan() {
		select {
		case cli.lines <- scanner.Text():
		case <-cli.quit:
			return
		}
	}
	close(cli.eof)
}

// ReadLine implements imcs.Channel.
func (cli *Client) ReadLine(limit time.Duration) (string, error) {
	var expired <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case line := <-cli.lines:
		return line, nil
	case <-cli.eof:
		return "", io.EOF
	case <-expired:
		return "", imcs.ErrTimeout
	}
}

// WriteLine implements imcs.Channel.
func (cli *Client) WriteLine(line string) error {
	cli.iolock.Lock()
	defer cli.iolock.Unlock()
	_, err := fmt.Fprintf(cli.rwc, "%s\n", line)
	return err
}

// Close implements imcs.Channel.  It is safe to call more than once.
func (cli *Client) Close() error {
	var err error
	cli.closing.Do(func() {
		close(cli.quit)
		err = cli.rwc.Close()
	})
	return err
}

// Reply sends a single status line.  Write errors are not reported
// to the caller: a broken connection surfaces as EOF on the next
// read, which is where the session handles it.
func (cli *Client) reply(code int, format string, args ...interface{}) {
	line := fmt.Sprintf("%d %s", code, fmt.Sprintf(format, args...))
	imcs.Debug.Println(cli, ">", line)
	if err := cli.WriteLine(line); err != nil {
		imcs.Debug.Println(cli, err)
	}
}

// Block sends a 21x opener, one data row per entry (each prefixed
// with a space) and the closing "." line.
func (cli *Client) block(code int, opener string, rows []string) {
	cli.reply(code, "%s", opener)
	for _, row := range rows {
		if err := cli.WriteLine(" " + row); err != nil {
			return
		}
	}
	cli.WriteLine(".")
}

// Connect runs the session until the connection is gone or handed
// over to an offerer.  One goroutine per connection.
func (cli *Client) Connect(st *cmd.State) {
	defer func() {
		if !cli.handoff {
			cli.Close()
		}
	}()
	// A vanished session cancels its own offers, as if it had sent
	// a final clean.
	defer st.CleanClient(cli.id)

	go cli.read()
	cli.reply(statusHello, "imcs %s", imcs.Version)

	for {
		line, err := cli.ReadLine(0)
		if err != nil {
			imcs.Debug.Println(cli, err)
			return
		}
		imcs.Debug.Println(cli, "<", line)
		if !cli.interpret(line, st) {
			return
		}
	}
}

// Interpret evaluates one command line.  It returns false when the
// session is over.
func (cli *Client) interpret(line string, st *cmd.State) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		// Empty lines get no reply
		return true
	}

	cmnd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmnd {
	case "help":
		cli.block(statusHelp, "imcs help", helpText)
	case "quit":
		cli.reply(statusGoodbye, "Goodbye")
		return false
	case "me":
		if len(args) != 2 {
			cli.reply(statusUnknown, "unknown command")
			break
		}
		switch err := st.Login(args[0], args[1]); err {
		case cmd.ErrUnknownUser:
			cli.reply(statusNoUser, "no such user")
		case cmd.ErrWrongPassword:
			cli.reply(statusBadPw, "wrong password")
		case nil:
			cli.name = args[0]
			cli.reply(statusLoggedIn, "hello %s", cli.name)
		}
	case "register":
		if len(args) != 2 {
			cli.reply(statusUnknown, "unknown command")
			break
		}
		switch err := st.Register(args[0], args[1]); {
		case err == cmd.ErrUserExists:
			cli.reply(statusUserExists, "user already exists")
		case err != nil:
			log.Printf("%s: register: %v", cli, err)
			cli.reply(statusInternal, "internal error")
		default:
			cli.name = args[0]
			cli.reply(statusRegistered, "hello new user %s", cli.name)
		}
	case "password":
		if len(args) != 1 {
			cli.reply(statusUnknown, "unknown command")
			break
		}
		if cli.name == "" {
			cli.reply(statusNotLogged, "not logged in")
			break
		}
		switch err := st.SetPassword(cli.name, args[0]); {
		case err == cmd.ErrUnknownUser:
			log.Printf("%s: record vanished", cli)
			cli.reply(statusVanished, "user record vanished")
		case err != nil:
			log.Printf("%s: password: %v", cli, err)
			cli.reply(statusInternal, "internal error")
		default:
			cli.reply(statusPwChanged, "password changed")
		}
	case "list":
		cli.list(st)
	case "ratings":
		players := st.Ratings(cli.name)
		rows := make([]string, len(players))
		for i, p := range players {
			rows[i] = fmt.Sprintf("%s %d", p.Name, p.Rating)
		}
		cli.block(statusRatings, "ratings", rows)
	case "offer":
		return cli.offer(args, st)
	case "accept":
		return cli.accept(args, st)
	case "clean":
		if cli.name == "" {
			cli.reply(statusAnon, "not logged in")
			break
		}
		k := st.Clean(cli.name)
		cli.reply(statusCleaned, "%d games cleaned", k)
	case "stop":
		if cli.name == "" {
			cli.reply(statusAnon, "not logged in")
			break
		}
		if cli.name != "admin" {
			cli.reply(statusAdminOnly, "admin only")
			break
		}
		cli.reply(statusStopping, "server stopping, goodbye")
		st.Stop()
		return false
	default:
		cli.reply(statusUnknown, "unknown command")
	}
	return true
}

func (cli *Client) list(st *cmd.State) {
	posts := st.Posts()
	rows := make([]string, 0, len(posts))
	for _, post := range posts {
		switch p := post.(type) {
		case *imcs.Offer:
			rows = append(rows, fmt.Sprintf("%d %s %s %s [offer]",
				p.ID, p.Owner, p.Side, st.Rating(p.Owner)))
		case *imcs.InProgress:
			rows = append(rows, fmt.Sprintf("%d %s %s (%s/%s)  [in-progress]",
				p.ID, p.White, p.Black,
				st.Rating(p.White), st.Rating(p.Black)))
		}
	}
	cli.block(statusList, fmt.Sprintf("%d games available", len(rows)), rows)
}

// Offer publishes a game offer and blocks on its mailbox.  On a
// match the session turns into the game supervisor and ends when the
// game does; on cancellation it drops back to the command loop.
func (cli *Client) offer(args []string, st *cmd.State) bool {
	if cli.name == "" {
		cli.reply(statusOfferAnon, "not logged in")
		return true
	}
	var side imcs.Side
	var ok bool
	if len(args) == 1 {
		side, ok = imcs.ParseSide(args[0])
	}
	if !ok {
		cli.reply(statusBadColor, "bad color")
		return true
	}

	off, err := st.NewOffer(cli.name, cli.id, side)
	if err != nil {
		log.Printf("%s: offer: %v", cli, err)
		cli.reply(statusInternal, "internal error")
		return true
	}
	cli.reply(statusWaiting, "game %d waiting for offer acceptance", off.ID)

	var m imcs.Match
	select {
	case m = <-off.Box:
	case <-cli.eof:
		// The peer hung up while we were waiting; retract our
		// own offers.  If an accepter won the race the mailbox
		// holds the acceptance and the game proceeds into the
		// I/O error path.
		st.CleanClient(cli.id)
		m = <-off.Box
	}

	if !m.Accepted {
		cli.reply(statusCancelled, "offer countermanded")
		return true
	}

	cli.reply(statusAccepted, "received acceptance")
	game.Play(st, off, cli, m, cli.conf.Clock())
	return false
}

// Accept matches an open offer.  On success the connection now
// belongs to the offerer and the session returns without closing it.
func (cli *Client) accept(args []string, st *cmd.State) bool {
	if cli.name == "" {
		cli.reply(statusAnon, "not logged in")
		return true
	}
	if len(args) != 1 {
		cli.reply(statusBadID, "bad game id")
		return true
	}
	id, err := parseGameID(args[0])
	if err != nil {
		cli.reply(statusBadID, "bad game id")
		return true
	}

	m := imcs.Match{
		Accepted: true,
		Name:     cli.name,
		Client:   cli.id,
		Chan:     cli,
	}
	switch _, err := st.Accept(id, m); err {
	case cmd.ErrNoSuchGame:
		cli.reply(statusNoGame, "no such game")
		return true
	case cmd.ErrInternal:
		cli.reply(statusInternal, "internal error")
		return true
	}

	cli.reply(statusAccepting, "accepting offer")
	cli.handoff = true
	return false
}
