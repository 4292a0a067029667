package game

import (
	"io"
	"log"
	"testing"
	"time"

	"go-imcs"
)

// script is a fake player channel: lines are read from a channel and
// written lines are collected.
type script struct {
	in   chan string
	sent []string
}

func makeScript(lines ...string) *script {
	s := &script{in: make(chan string, len(lines))}
	for _, l := range lines {
		s.in <- l
	}
	return s
}

func (s *script) ReadLine(limit time.Duration) (string, error) {
	var expired <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case line, ok := <-s.in:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-expired:
		return "", imcs.ErrTimeout
	}
}

func (s *script) WriteLine(line string) error {
	s.sent = append(s.sent, line)
	return nil
}

func (s *script) Close() error { return nil }

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func play(t *testing.T, white, black *script, clock time.Duration) (int, error) {
	t.Helper()
	return MakeRelay().Play(
		imcs.Seat{Name: "white", Chan: white, Time: clock},
		imcs.Seat{Name: "black", Chan: black, Time: clock},
		discard())
}

func TestRelayResign(t *testing.T) {
	white := makeScript("resign")
	black := makeScript()

	score, err := play(t, white, black, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if score != -1 {
		t.Errorf("expected -1 for a white resignation, got %+d", score)
	}
}

func TestRelayMovesThenResign(t *testing.T) {
	white := makeScript("e2-e3", "resign")
	black := makeScript("e7-e6")

	score, err := play(t, white, black, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if score != -1 {
		t.Errorf("expected -1 after white resigns, got %+d", score)
	}

	// Moves were relayed to the opposite side, in order
	if len(black.sent) == 0 || black.sent[0] != "! e2-e3" {
		t.Errorf("move not relayed to black: %v", black.sent)
	}
	if len(white.sent) == 0 || white.sent[0] != "! e7-e6" {
		t.Errorf("move not relayed to white: %v", white.sent)
	}
}

func TestRelayFlagFall(t *testing.T) {
	white := makeScript() // never moves
	black := makeScript()

	score, err := play(t, white, black, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if score != -1 {
		t.Errorf("expected -1 when white forfeits on time, got %+d", score)
	}
}

func TestRelayDrawAgreement(t *testing.T) {
	white := makeScript("draw")
	black := makeScript("draw")

	score, err := play(t, white, black, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 {
		t.Errorf("expected a draw, got %+d", score)
	}
}

func TestRelayIOError(t *testing.T) {
	white := makeScript()
	close(white.in)
	black := makeScript()

	_, err := play(t, white, black, time.Second)
	if err == nil {
		t.Fatal("expected an error when the stream breaks")
	}
}

func TestRelayChargesClock(t *testing.T) {
	// White burns most of the clock before moving; the second move
	// must time out against the remainder.
	white := &script{in: make(chan string, 1)}
	black := makeScript("e7-e6")
	go func() {
		time.Sleep(60 * time.Millisecond)
		white.in <- "e2-e3"
		// never moves again
	}()

	score, err := play(t, white, black, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if score != -1 {
		t.Errorf("expected white to lose on time, got %+d", score)
	}
}
