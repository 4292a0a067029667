package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-imcs"
	"go-imcs/store"
)

func testState(t *testing.T) *State {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	st, err := MakeState(s)
	require.NoError(t, err)
	return st
}

func TestRegisterLoginPassword(t *testing.T) {
	st := testState(t)

	require.Equal(t, ErrUnknownUser, st.Login("alice", "pw1"))
	require.NoError(t, st.Register("alice", "pw1"))
	require.Equal(t, ErrUserExists, st.Register("alice", "other"))
	require.NoError(t, st.Login("alice", "pw1"))
	require.Equal(t, ErrWrongPassword, st.Login("alice", "wrong"))

	require.NoError(t, st.SetPassword("alice", "pw2"))
	require.NoError(t, st.Login("alice", "pw2"))
	require.Equal(t, ErrWrongPassword, st.Login("alice", "pw1"))

	// Registration survives a reload
	st2, err := MakeState(st.Store)
	require.NoError(t, err)
	require.NoError(t, st2.Login("alice", "pw2"))
}

func TestOfferIDsMonotonic(t *testing.T) {
	st := testState(t)
	require.NoError(t, st.Register("alice", "pw"))

	a, err := st.NewOffer("alice", 1, imcs.White)
	require.NoError(t, err)
	b, err := st.NewOffer("alice", 1, imcs.Black)
	require.NoError(t, err)
	require.Greater(t, b.ID, a.ID)

	// The incremented counter is persisted before the id is used
	next, err := st.Store.LoadGameID()
	require.NoError(t, err)
	require.Greater(t, next, b.ID)

	seen := make(map[int]bool)
	for _, p := range st.Posts() {
		require.False(t, seen[p.Post()])
		seen[p.Post()] = true
	}
}

func TestAcceptRemovesAndSignals(t *testing.T) {
	st := testState(t)
	off, err := st.NewOffer("alice", 1, imcs.White)
	require.NoError(t, err)

	m := imcs.Match{Accepted: true, Name: "bob", Client: 2}
	_, err = st.Accept(off.ID, m)
	require.NoError(t, err)

	// Once the offer is gone from the list, the mailbox has been
	// signalled.
	require.Empty(t, st.Posts())
	select {
	case got := <-off.Box:
		require.Equal(t, m, got)
	default:
		t.Fatal("mailbox empty after accept")
	}

	_, err = st.Accept(off.ID, m)
	require.Equal(t, ErrNoSuchGame, err)
}

func TestAcceptUnknownGame(t *testing.T) {
	st := testState(t)
	_, err := st.Accept(77, imcs.Match{Accepted: true})
	require.Equal(t, ErrNoSuchGame, err)
}

func TestCleanOwnOffersOnly(t *testing.T) {
	st := testState(t)

	a1, err := st.NewOffer("alice", 1, imcs.White)
	require.NoError(t, err)
	a2, err := st.NewOffer("alice", 1, imcs.Black)
	require.NoError(t, err)
	b1, err := st.NewOffer("bob", 2, imcs.White)
	require.NoError(t, err)

	require.Equal(t, 2, st.Clean("alice"))
	for _, off := range []*imcs.Offer{a1, a2} {
		select {
		case m := <-off.Box:
			require.False(t, m.Accepted)
		default:
			t.Fatal("cancelled offer not signalled")
		}
	}

	posts := st.Posts()
	require.Len(t, posts, 1)
	require.Equal(t, b1.ID, posts[0].Post())

	// Clean is idempotent
	require.Equal(t, 0, st.Clean("alice"))

	_, err = st.Accept(a1.ID, imcs.Match{Accepted: true})
	require.Equal(t, ErrNoSuchGame, err)
}

func TestCleanClient(t *testing.T) {
	st := testState(t)

	// Same name, two sessions
	_, err := st.NewOffer("alice", 1, imcs.White)
	require.NoError(t, err)
	keep, err := st.NewOffer("alice", 2, imcs.White)
	require.NoError(t, err)

	require.Equal(t, 1, st.CleanClient(1))
	posts := st.Posts()
	require.Len(t, posts, 1)
	require.Equal(t, keep.ID, posts[0].Post())
}

func TestRatingsListing(t *testing.T) {
	st := testState(t)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for i, name := range names {
		require.NoError(t, st.Register(name, "pw"))
		// Spread the ratings out: a ends highest, l lowest
		st.lock()
		st.players[name].Rating = 2000 - 10*i
		st.unlock()
	}

	// Anonymous caller: exactly the top ten
	top := st.Ratings("")
	require.Len(t, top, 10)
	for i := 1; i < len(top); i++ {
		require.GreaterOrEqual(t, top[i-1].Rating, top[i].Rating)
	}
	require.Equal(t, "a", top[0].Name)

	// Caller outside the top ten is appended
	rows := st.Ratings("l")
	require.Len(t, rows, 11)
	require.Equal(t, "l", rows[10].Name)

	// Caller inside the top ten is not duplicated
	rows = st.Ratings("a")
	require.Len(t, rows, 10)

	// Unknown caller gets no extra row
	rows = st.Ratings("nobody")
	require.Len(t, rows, 10)
}

func TestEndUpdatesRatings(t *testing.T) {
	st := testState(t)
	require.NoError(t, st.Register("alice", "pw"))
	require.NoError(t, st.Register("bob", "pw"))

	g := st.Begin(1, "alice", "bob")
	require.Len(t, st.Posts(), 1)

	st.End(g, 1)

	require.Empty(t, st.Posts())
	select {
	case <-g.Done():
	default:
		t.Fatal("completion signal did not fire")
	}

	require.Equal(t, "1210", st.Rating("alice"))
	require.Equal(t, "1190", st.Rating("bob"))

	// And the new ratings are on disk
	players, err := st.Store.LoadPlayers()
	require.NoError(t, err)
	require.Equal(t, 1210, players["alice"].Rating)
	require.Equal(t, 1190, players["bob"].Rating)
}

func TestAbortLeavesRatings(t *testing.T) {
	st := testState(t)
	require.NoError(t, st.Register("alice", "pw"))
	require.NoError(t, st.Register("bob", "pw"))

	g := st.Begin(1, "alice", "bob")
	st.Abort(g)

	require.Empty(t, st.Posts())
	require.Equal(t, "1200", st.Rating("alice"))
	select {
	case <-g.Done():
	default:
		t.Fatal("completion signal did not fire")
	}
}

func TestStopDrains(t *testing.T) {
	st := testState(t)

	off, err := st.NewOffer("alice", 1, imcs.White)
	require.NoError(t, err)
	g := st.Begin(2, "bob", "carol")

	stopped := make(chan struct{})
	go func() {
		st.Stop()
		close(stopped)
	}()

	// The open offer is cancelled right away
	select {
	case m := <-off.Box:
		require.False(t, m.Accepted)
	case <-time.After(time.Second):
		t.Fatal("offer not cancelled by stop")
	}

	// But the server stays up until the game completes
	select {
	case <-stopped:
		t.Fatal("stop returned with a game in flight")
	case <-time.After(50 * time.Millisecond):
	}

	g.Finish()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after the game finished")
	}
	require.Error(t, st.Context.Err())
}
