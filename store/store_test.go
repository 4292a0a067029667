package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-imcs"
)

func TestBootstrap(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	s, err := Open(dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "VERSION"))
	require.NoError(t, err)
	require.Equal(t, imcs.Version+"\n", string(raw))

	players, err := s.LoadPlayers()
	require.NoError(t, err)
	require.Empty(t, players)

	id, err := s.LoadGameID()
	require.NoError(t, err)
	require.Equal(t, 1, id)
}

func TestPlayersRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	players := map[string]*imcs.Player{
		"alice": {Name: "alice", Password: "pw1", Rating: 1210},
		"bob":   {Name: "bob", Password: "hunter2", Rating: 1190},
		"admin": {Name: "admin", Password: "s3cret", Rating: imcs.BaseRating},
	}
	require.NoError(t, s.SavePlayers(players))

	got, err := s.LoadPlayers()
	require.NoError(t, err)
	require.Equal(t, players, got)

	// The temporary file must not survive the rename
	_, err = os.Stat(s.passwd() + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestGameIDRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveGameID(42))
	id, err := s.LoadGameID()
	require.NoError(t, err)
	require.Equal(t, 42, id)
}

func TestMigrateLegacyPasswd(t *testing.T) {
	dir := t.TempDir()

	// Lay out a 2.0 state directory: two-column passwd, no log
	// directory, no GAMEID.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "private"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"),
		[]byte("2.0\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "private", "passwd"),
		[]byte("alice pw1\nbob hunter2\n"), 0600))

	s, err := Open(dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "VERSION"))
	require.NoError(t, err)
	require.Equal(t, imcs.Version+"\n", string(raw))

	players, err := s.LoadPlayers()
	require.NoError(t, err)
	require.Len(t, players, 2)
	require.Equal(t, imcs.BaseRating, players["alice"].Rating)
	require.Equal(t, "pw1", players["alice"].Password)
	require.Equal(t, imcs.BaseRating, players["bob"].Rating)

	id, err := s.LoadGameID()
	require.NoError(t, err)
	require.Equal(t, 1, id)

	_, err = os.Stat(filepath.Join(dir, "log"))
	require.NoError(t, err)
}

func TestUnknownVersionFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"),
		[]byte("9.7\n"), 0600))

	_, err := Open(dir)
	require.Error(t, err)
}

func TestGameLogAppends(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	w, err := s.GameLog(7)
	require.NoError(t, err)
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = s.GameLog(7)
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(filepath.Join(s.Dir(), "log", "7"))
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(raw))
}
