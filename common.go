// Common Interfaces and constants
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

package imcs

import (
	"errors"
	"log"
	"time"
)

// Version is the protocol and on-disk schema version.
const Version = "2.2"

type Side bool

const (
	White Side = false
	Black Side = true
)

func (s Side) String() string {
	if s == White {
		return "W"
	}
	return "B"
}

// ParseSide accepts exactly "W" or "B".
func ParseSide(tok string) (Side, bool) {
	switch tok {
	case "W":
		return White, true
	case "B":
		return Black, true
	default:
		return White, false
	}
}

// Player is one record of the player table, as stored in the passwd
// file.  Name and Password are non-empty tokens without whitespace.
type Player struct {
	Name     string
	Password string
	Rating   int
}

// ErrTimeout is returned by Channel.ReadLine when the limit expires
// before a full line arrives.
var ErrTimeout = errors.New("read timed out")

// Channel is one client's half of a connection, after the command
// layer has taken over framing.  Lines are delivered in the order the
// peer sent them, across the handoff from the command loop to a game
// driver.
type Channel interface {
	// ReadLine returns the next line the peer sent.  A limit of 0
	// blocks indefinitely, otherwise ErrTimeout is returned when
	// the limit expires.
	ReadLine(limit time.Duration) (string, error)

	// WriteLine sends a single line, appending the terminator.
	WriteLine(line string) error

	Close() error
}

// Seat is one side of a match as handed to a game driver.
type Seat struct {
	Name string
	Chan Channel
	Time time.Duration
}

// Driver arbitrates a single game between two connected players.  It
// owns all move traffic on both channels until it returns.  The score
// is +1 if white won, -1 if black won and 0 for a draw.  A non-nil
// error indicates an I/O failure on one of the channels; the broker
// then aborts the game without touching the ratings.
type Driver interface {
	Play(white, black Seat, trans *log.Logger) (score int, err error)
}

// Post is an entry of the shared post list, either an Offer waiting
// for an opponent or an InProgress game.
type Post interface {
	Post() int
}

// Match is the single message an Offer's mailbox ever carries: an
// acceptance with the accepter's identity and channel, or a
// cancellation.
type Match struct {
	Accepted bool
	Name     string
	Client   int64
	Chan     Channel
}

// Offer is a waiting-for-opponent advertisement.  Box has capacity
// one and receives exactly one Match over the Offer's lifetime; the
// sender is whoever removes the Offer from the post list while
// holding the state guard.
type Offer struct {
	ID     int
	Owner  string
	Client int64
	Side   Side
	Box    chan Match
}

func (o *Offer) Post() int { return o.ID }

func MakeOffer(id int, owner string, client int64, side Side) *Offer {
	return &Offer{
		ID:     id,
		Owner:  owner,
		Client: client,
		Side:   side,
		Box:    make(chan Match, 1),
	}
}

// InProgress marks an active game between two matched players.  The
// completion signal fires exactly once, when the game has been torn
// down and the ratings persisted.
type InProgress struct {
	ID    int
	White string
	Black string
	done  chan struct{}
}

func (g *InProgress) Post() int { return g.ID }

func MakeInProgress(id int, white, black string) *InProgress {
	return &InProgress{ID: id, White: white, Black: black, done: make(chan struct{})}
}

// Finish fires the completion signal.  Must be called at most once.
func (g *InProgress) Finish() { close(g.done) }

// Done returns the completion signal channel.
func (g *InProgress) Done() <-chan struct{} { return g.done }
