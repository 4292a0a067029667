// Match supervision
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
	"log"
	"time"

	"go-imcs"
	"go-imcs/cmd"
)

// Play supervises one game from the offerer's goroutine.  The
// offerer owns both channels from here on and closes both at the
// end.  In order:
//
//  1. assign colors from the offered side,
//  2. record the game as in progress,
//  3. route the transcript to log/<id>,
//  4. run the driver with both clocks,
//  5. settle ratings (or abort on an I/O failure) and fire the
//     completion signal.
func Play(st *cmd.State, off *imcs.Offer, own imcs.Channel, m imcs.Match, clock time.Duration) {
	white := imcs.Seat{Name: off.Owner, Chan: own, Time: clock}
	black := imcs.Seat{Name: m.Name, Chan: m.Chan, Time: clock}
	if off.Side == imcs.Black {
		white, black = black, white
	}

	g := st.Begin(off.ID, white.Name, black.Name)

	trans, closeTrans := transcript(st, off.ID)
	trans.Printf("game %d: %s (W) vs %s (B)", off.ID, white.Name, black.Name)
	trans.Printf("started %s", time.Now().UTC().Format(time.RFC3339))

	score, err := st.Driver.Play(white, black, trans)
	if err != nil {
		trans.Printf("fatal IO error: %v", err)
		log.Printf("Game %d: fatal IO error: %v", off.ID, err)
		// Best effort; either connection may already be gone
		white.Chan.WriteLine("420 fatal IO error: exiting")
		black.Chan.WriteLine("420 fatal IO error: exiting")
		white.Chan.Close()
		black.Chan.Close()
		closeTrans()
		st.Abort(g)
		return
	}

	trans.Printf("finished %s, score %+d", time.Now().UTC().Format(time.RFC3339), score)
	white.Chan.Close()
	black.Chan.Close()
	closeTrans()
	st.End(g, score)
}

// Transcript returns the game-scoped logger.  If the transcript file
// cannot be opened the game is still played, with its messages going
// to the process log instead.
func transcript(st *cmd.State, id int) (*log.Logger, func()) {
	w, err := st.Store.GameLog(id)
	if err != nil {
		log.Printf("Game %d: no transcript: %v", id, err)
		return log.New(log.Writer(), "", log.LstdFlags), func() {}
	}
	return log.New(w, "", 0), func() { w.Close() }
}
