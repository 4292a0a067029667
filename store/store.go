// On-disk state management
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

package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go-imcs"
)

// The state directory looks like this:
//
//	VERSION          current schema version, a single line
//	private/GAMEID   next game id, a decimal integer
//	private/passwd   one "name password rating" record per line
//	log/<id>         per-game transcripts
//
// Version 2.0 had a two-column passwd (no ratings) and version 2.1
// had no log directory.  Open migrates whatever it finds up to the
// current version before the server accepts connections.

// Store gives access to a state directory at the current version.
type Store struct {
	dir string
}

func (s *Store) version() string { return filepath.Join(s.dir, "VERSION") }
func (s *Store) gameid() string  { return filepath.Join(s.dir, "private", "GAMEID") }
func (s *Store) passwd() string  { return filepath.Join(s.dir, "private", "passwd") }
func (s *Store) logdir() string  { return filepath.Join(s.dir, "log") }
func (s *Store) String() string  { return fmt.Sprintf("Store (%s)", s.dir) }

// Open prepares the state directory DIR, bootstrapping it if it does
// not exist yet and migrating legacy layouts.  An unrecognised
// on-disk version is an error; the caller must not start the server.
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir}

	raw, err := os.ReadFile(s.version())
	switch {
	case os.IsNotExist(err):
		if err := s.bootstrap(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, err
	}

	version := strings.TrimSpace(string(raw))
	for version != imcs.Version {
		next, err := s.migrate(version)
		if err != nil {
			return nil, err
		}
		if err := s.writeVersion(next); err != nil {
			return nil, err
		}
		version = next
	}
	return s, nil
}

// Dir returns the state directory root.
func (s *Store) Dir() string { return s.dir }

func (s *Store) bootstrap() error {
	for _, d := range []string{
		s.dir,
		filepath.Join(s.dir, "private"),
		s.logdir(),
	} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	if err := os.WriteFile(s.passwd(), nil, 0600); err != nil {
		return err
	}
	if err := s.SaveGameID(1); err != nil {
		return err
	}
	return s.writeVersion(imcs.Version)
}

func (s *Store) writeVersion(version string) error {
	return os.WriteFile(s.version(), []byte(version+"\n"), 0600)
}

// Migrate the layout one step up from VERSION, returning the version
// it now has.
func (s *Store) migrate(version string) (string, error) {
	switch version {
	case "2.0":
		// The 2.0 passwd had no rating column; re-rate
		// everyone at the base rating.
		players, err := s.readPasswd(true)
		if err != nil {
			return "", err
		}
		if err := s.SavePlayers(players); err != nil {
			return "", err
		}
		if _, err := s.LoadGameID(); os.IsNotExist(err) {
			if err := s.SaveGameID(1); err != nil {
				return "", err
			}
		} else if err != nil {
			return "", err
		}
		return "2.1", nil
	case "2.1":
		if err := os.MkdirAll(s.logdir(), 0700); err != nil {
			return "", err
		}
		return "2.2", nil
	default:
		return "", fmt.Errorf("unknown on-disk version %q", version)
	}
}

func (s *Store) readPasswd(legacy bool) (map[string]*imcs.Player, error) {
	file, err := os.Open(s.passwd())
	if err != nil {
		return nil, err
	}
	defer file.Close()

	players := make(map[string]*imcs.Player)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		p := &imcs.Player{Rating: imcs.BaseRating}
		switch {
		case legacy && len(fields) == 2:
			p.Name, p.Password = fields[0], fields[1]
		case !legacy && len(fields) == 3:
			p.Name, p.Password = fields[0], fields[1]
			p.Rating, err = strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("malformed passwd entry %q: %w",
					scanner.Text(), err)
			}
		default:
			return nil, fmt.Errorf("malformed passwd entry %q", scanner.Text())
		}
		players[p.Name] = p
	}
	return players, scanner.Err()
}

// LoadPlayers reads the player table from the passwd file.
func (s *Store) LoadPlayers() (map[string]*imcs.Player, error) {
	return s.readPasswd(false)
}

// SavePlayers atomically replaces the passwd file with the given
// table.  The new contents are written to a temporary file that is
// renamed over the old one in a single step, so a crash leaves either
// the old or the new table, never neither.
func (s *Store) SavePlayers(players map[string]*imcs.Player) error {
	names := make([]string, 0, len(players))
	for name := range players {
		names = append(names, name)
	}
	sort.Strings(names)

	tmp := s.passwd() + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for _, name := range names {
		p := players[name]
		fmt.Fprintf(w, "%s %s %d\n", p.Name, p.Password, p.Rating)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.passwd())
}

// LoadGameID reads the next game id.
func (s *Store) LoadGameID() (int, error) {
	raw, err := os.ReadFile(s.gameid())
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("malformed GAMEID: %w", err)
	}
	return id, nil
}

// SaveGameID persists the next game id.  This is written eagerly,
// before an allocated id is first used, so ids stay monotonic across
// restarts.
func (s *Store) SaveGameID(id int) error {
	return os.WriteFile(s.gameid(), []byte(strconv.Itoa(id)+"\n"), 0600)
}

// GameLog opens the transcript file for a game in append mode.
func (s *Store) GameLog(id int) (io.WriteCloser, error) {
	name := filepath.Join(s.logdir(), strconv.Itoa(id))
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
}
