// Protocol Handling
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
	"strconv"
)

// Server reply codes.  Every server line starts with one of these,
// except for the data rows of a 21x block, which start with a space
// and are closed by a single "." line.
const (
	statusHello     = 100 // server hello with version
	statusWaiting   = 101 // offer posted, waiting
	statusAccepted  = 102 // offer accepted, sent to the offerer
	statusAccepting = 103 // accepting, sent to the accepter

	statusGoodbye    = 200
	statusLoggedIn   = 201
	statusRegistered = 202
	statusPwChanged  = 203
	statusCleaned    = 204
	statusStopping   = 205
	statusHelp       = 210
	statusList       = 211
	statusRatings    = 212

	statusNoUser     = 400
	statusBadPw      = 401
	statusUserExists = 402
	statusNotLogged  = 403 // for password
	statusOfferAnon  = 404 // offer without a name
	statusBadColor   = 405
	statusAnon       = 406 // accept/clean/stop without a name
	statusBadID      = 407
	statusNoGame     = 408
	statusIOError    = 420
	statusCancelled  = 421
	statusInternal   = 499
	statusVanished   = 500
	statusUnknown    = 501
	statusAdminOnly  = 502
)

var errBadGameID = errors.New("bad game id")

// maxIDDigits bounds the accepted length of a game id so that parsing
// can never overflow.
const maxIDDigits = 9

// parseGameID accepts a non-empty string of fewer than nine decimal
// digits.
func parseGameID(tok string) (int, error) {
	if len(tok) == 0 || len(tok) >= maxIDDigits {
		return 0, errBadGameID
	}
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, errBadGameID
		}
	}
	id, err := strconv.Atoi(tok)
	if err != nil {
		return 0, errBadGameID
	}
	return id, nil
}

var helpText = []string{
	"help                       this text",
	"quit                       end the session",
	"me <name> <password>       log in",
	"register <name> <password> create a new account and log in",
	"password <password>        change your password",
	"list                       list offered and running games",
	"ratings                    show the best rated players",
	"offer <W|B>                offer a game, playing the given color",
	"accept <id>                accept an offered game",
	"clean                      cancel your own offers",
	"stop                       shut the server down (admin only)",
}
