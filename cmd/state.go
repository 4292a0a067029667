// Shared State
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
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"

	"go-imcs"
	"go-imcs/store"
)

type Manager interface {
	fmt.Stringer
	Start(*State, *Conf)
	Shutdown()
}

var (
	ErrUnknownUser   = errors.New("no such user")
	ErrWrongPassword = errors.New("wrong password")
	ErrUserExists    = errors.New("user already exists")
	ErrNoSuchGame    = errors.New("no such game")
	ErrInternal      = errors.New("internal error")
)

// State is the shared service state: the next game id, the post list
// and the player table, all guarded by a single non-reentrant lock.
// The lock is never held across a socket read, a mailbox wait or a
// game driver call; the only blocking operations tolerated inside a
// critical section are the passwd and GAMEID writes (a known hazard,
// see the store package).
type State struct {
	Store  *store.Store
	Driver imcs.Driver

	guard   sync.Mutex
	nextID  int
	posts   []imcs.Post
	players map[string]*imcs.Player

	Context context.Context
	Kill    context.CancelFunc
	running bool

	managers []Manager
}

// MakeState loads the persisted state from the store.
func MakeState(s *store.Store) (*State, error) {
	players, err := s.LoadPlayers()
	if err != nil {
		return nil, err
	}
	next, err := s.LoadGameID()
	if err != nil {
		return nil, err
	}

	ctx, kill := context.WithCancel(context.Background())
	st := &State{
		Store:   s,
		nextID:  next,
		players: players,
		Context: ctx,
		Kill:    kill,
	}
	return st, nil
}

func (st *State) lock()   { st.guard.Lock() }
func (st *State) unlock() { st.guard.Unlock() }

// Login checks a name and password against the player table.
func (st *State) Login(name, password string) error {
	st.lock()
	defer st.unlock()

	p, ok := st.players[name]
	if !ok {
		return ErrUnknownUser
	}
	if p.Password != password {
		return ErrWrongPassword
	}
	return nil
}

// Register adds a new player record at the base rating and persists
// the table.
func (st *State) Register(name, password string) error {
	st.lock()
	defer st.unlock()

	if _, ok := st.players[name]; ok {
		return ErrUserExists
	}
	st.players[name] = &imcs.Player{
		Name:     name,
		Password: password,
		Rating:   imcs.BaseRating,
	}
	return st.Store.SavePlayers(st.players)
}

// SetPassword rewrites the caller's record and persists the table.
// ErrUnknownUser here means an authenticated session's record has
// vanished, which no client action can cause.
func (st *State) SetPassword(name, password string) error {
	st.lock()
	defer st.unlock()

	p, ok := st.players[name]
	if !ok {
		return ErrUnknownUser
	}
	p.Password = password
	return st.Store.SavePlayers(st.players)
}

// SetAdmin makes sure the player table has an "admin" record with
// the given password, so the stop command and the takeover handshake
// go through the ordinary login path.
func (st *State) SetAdmin(password string) error {
	st.lock()
	defer st.unlock()

	if p, ok := st.players["admin"]; ok {
		if p.Password == password {
			return nil
		}
		p.Password = password
	} else {
		st.players["admin"] = &imcs.Player{
			Name:     "admin",
			Password: password,
			Rating:   imcs.BaseRating,
		}
	}
	return st.Store.SavePlayers(st.players)
}

// Rating returns the rating for a player as shown in post listings:
// the decimal rating, or "?" if there is no record.
func (st *State) Rating(name string) string {
	st.lock()
	defer st.unlock()
	return st.rating(name)
}

func (st *State) rating(name string) string {
	p, ok := st.players[name]
	if !ok {
		return "?"
	}
	return strconv.Itoa(p.Rating)
}

// Ratings returns the top ten players by descending rating, followed
// by the caller's own row if the caller is named, has a record and is
// not already among the top ten.
func (st *State) Ratings(self string) []imcs.Player {
	st.lock()
	defer st.unlock()

	all := make([]imcs.Player, 0, len(st.players))
	for _, p := range st.players {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return all[i].Rating > all[j].Rating
		}
		return all[i].Name < all[j].Name
	})

	top := all
	if len(top) > 10 {
		top = all[:10:10]
	}
	if self == "" {
		return top
	}
	for _, p := range top {
		if p.Name == self {
			return top
		}
	}
	if p, ok := st.players[self]; ok {
		top = append(top, *p)
	}
	return top
}

// Posts returns a snapshot of the post list.  The posts themselves
// are immutable once published, so the copies may be inspected
// without the guard.
func (st *State) Posts() []imcs.Post {
	st.lock()
	defer st.unlock()
	return append([]imcs.Post(nil), st.posts...)
}

// NewOffer allocates the next game id, persists the incremented
// counter and publishes an Offer under that id.
func (st *State) NewOffer(owner string, client int64, side imcs.Side) (*imcs.Offer, error) {
	st.lock()
	defer st.unlock()

	id := st.nextID
	st.nextID++
	if err := st.Store.SaveGameID(st.nextID); err != nil {
		st.nextID = id
		return nil, err
	}

	off := imcs.MakeOffer(id, owner, client, side)
	st.posts = append(st.posts, off)
	return off, nil
}

// Accept atomically removes the Offer with the given id from the post
// list and delivers the Match into its mailbox.  Once any session
// observes the Offer gone, the mailbox has been signalled.
func (st *State) Accept(id int, m imcs.Match) (*imcs.Offer, error) {
	st.lock()
	defer st.unlock()

	var found *imcs.Offer
	for _, post := range st.posts {
		off, ok := post.(*imcs.Offer)
		if !ok || off.ID != id {
			continue
		}
		if found != nil {
			log.Printf("Duplicate offer for game %d", id)
			return nil, ErrInternal
		}
		found = off
	}
	if found == nil {
		return nil, ErrNoSuchGame
	}

	st.remove(found)
	found.Box <- m
	return found, nil
}

// Clean removes all Offers owned by the given player name and cancels
// each, returning how many were cancelled.
func (st *State) Clean(owner string) int {
	return st.clean(func(o *imcs.Offer) bool { return o.Owner == owner })
}

// CleanClient removes all Offers published by one session, identified
// by its client id.  This is the implicit clean applied when a
// session's connection goes away.
func (st *State) CleanClient(client int64) int {
	return st.clean(func(o *imcs.Offer) bool { return o.Client == client })
}

func (st *State) clean(owned func(*imcs.Offer) bool) int {
	st.lock()
	defer st.unlock()

	var victims []*imcs.Offer
	for _, post := range st.posts {
		if off, ok := post.(*imcs.Offer); ok && owned(off) {
			victims = append(victims, off)
		}
	}
	for _, off := range victims {
		st.remove(off)
		off.Box <- imcs.Match{}
	}
	return len(victims)
}

// Begin records a game as in progress.
func (st *State) Begin(id int, white, black string) *imcs.InProgress {
	st.lock()
	defer st.unlock()

	g := imcs.MakeInProgress(id, white, black)
	st.posts = append(st.posts, g)
	return g
}

// End removes an in-progress game, updates both ratings from the
// white-relative score, persists the player table and fires the
// completion signal.
func (st *State) End(g *imcs.InProgress, score int) {
	st.lock()
	defer st.unlock()

	white, wok := st.players[g.White]
	black, bok := st.players[g.Black]
	if wok && bok {
		wr, br := white.Rating, black.Rating
		white.Rating = imcs.UpdateRating(wr, br, score)
		black.Rating = imcs.UpdateRating(br, wr, -score)
		if err := st.Store.SavePlayers(st.players); err != nil {
			log.Printf("Game %d: failed to persist ratings: %v", g.ID, err)
		}
	} else {
		log.Printf("Game %d: missing player record (%s/%s)",
			g.ID, g.White, g.Black)
	}

	st.remove(g)
	g.Finish()
}

// Abort removes an in-progress game without touching the ratings and
// fires the completion signal.  Used when the driver reports an I/O
// failure.
func (st *State) Abort(g *imcs.InProgress) {
	st.lock()
	defer st.unlock()

	st.remove(g)
	g.Finish()
}

func (st *State) remove(p imcs.Post) {
	for i, q := range st.posts {
		if q == p {
			st.posts = append(st.posts[:i], st.posts[i+1:]...)
			return
		}
	}
}

// Stop drains the service for shutdown: every open Offer is
// cancelled, and Stop blocks until the completion signal of every
// in-progress game has fired.  No new Offers are observable after the
// critical section.  Finally the server context is killed, letting
// Start return.
func (st *State) Stop() {
	st.lock()
	var games []*imcs.InProgress
	for _, post := range st.posts {
		switch p := post.(type) {
		case *imcs.Offer:
			p.Box <- imcs.Match{}
		case *imcs.InProgress:
			games = append(games, p)
		}
	}
	st.posts = nil
	st.unlock()

	log.Println("Waiting for ongoing games to finish.")
	for _, g := range games {
		<-g.Done()
	}
	st.Kill()
}

// Manage registers a manager to be started and shut down with the
// server.
func (st *State) Manage(m Manager) {
	if st.running {
		panic(fmt.Sprintf("Late register: %#v", m))
	}
	st.managers = append(st.managers, m)
}

// Start launches all registered managers and blocks until an
// interrupt arrives or the context is killed, then shuts the managers
// down in reverse order.
func (st *State) Start(c *Conf) {
	for _, m := range st.managers {
		imcs.Debug.Printf("Starting %s", m)
		go m.Start(st, c)
	}
	st.running = true

	intr := make(chan os.Signal, 1)
	signal.Notify(intr, os.Interrupt)
	select {
	case <-intr:
		log.Println("Caught interrupt")
		st.Stop()
	case <-st.Context.Done():
		log.Println("Requested shutdown")
	}

	imcs.Debug.Println("Waiting for managers to shut down...")
	for i := len(st.managers) - 1; i >= 0; i-- {
		m := st.managers[i]
		imcs.Debug.Printf("Shutting %s down", m)
		m.Shutdown()
	}
}
