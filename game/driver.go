// Relay game driver
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

package game

import (
	"errors"
	"log"
	"strings"
	"time"

	"go-imcs"
)

// The relay driver arbitrates turns and clocks without knowing the
// rules of the game being played.  White moves first; each line a
// player sends is charged against their clock and relayed verbatim
// to the opponent as "! <move>".  "resign" loses the game, and two
// consecutive "draw" lines end it as a draw.  Move legality is the
// players' business; a rules-aware driver can be swapped in through
// the imcs.Driver interface.
type relay struct{}

func MakeRelay() imcs.Driver { return relay{} }

func (relay) String() string { return "Relay driver" }

func (relay) Play(white, black imcs.Seat, trans *log.Logger) (int, error) {
	var (
		mover    = &white
		waiter   = &black
		side     = imcs.White
		drawPend = false
	)

	for {
		start := time.Now()
		line, err := mover.Chan.ReadLine(mover.Time)
		switch {
		case errors.Is(err, imcs.ErrTimeout):
			trans.Printf("%s (%s) forfeits on time", mover.Name, side)
			mover.Chan.WriteLine("= you lose on time")
			waiter.Chan.WriteLine("= opponent forfeits on time, you win")
			return win(!side), nil
		case err != nil:
			return 0, err
		}
		mover.Time -= time.Since(start)

		move := strings.TrimSpace(line)
		if move == "" {
			continue
		}

		switch strings.ToLower(move) {
		case "resign":
			trans.Printf("%s (%s) resigns", mover.Name, side)
			mover.Chan.WriteLine("= you lose, resignation")
			waiter.Chan.WriteLine("= opponent resigns, you win")
			return win(!side), nil
		case "draw":
			if drawPend {
				trans.Print("draw agreed")
				mover.Chan.WriteLine("= draw agreed")
				waiter.Chan.WriteLine("= draw agreed")
				return 0, nil
			}
			drawPend = true
		default:
			drawPend = false
		}

		trans.Printf("%s %s", side, move)
		if err := waiter.Chan.WriteLine("! " + move); err != nil {
			return 0, err
		}

		mover, waiter = waiter, mover
		side = !side
	}
}

// Win maps the winning side to a white-relative score.
func win(s imcs.Side) int {
	if s == imcs.White {
		return 1
	}
	return -1
}
