// Skill rating
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

import "math"

// BaseRating is assigned to every newly registered player.
const BaseRating = 1200

const (
	maxDiff = 400
	kFactor = 20
)

// UpdateRating computes the new rating for a player after a game
// against an opponent, following the usual ELO expected-score formula
// with the rating difference clamped to ±400.  The score is from the
// player's perspective: +1 win, 0 draw, -1 loss.
func UpdateRating(self, opponent, score int) int {
	diff := math.Max(-maxDiff, math.Min(float64(opponent-self), maxDiff))
	expected := 1 / (1 + math.Pow(10, diff/maxDiff))
	outcome := (float64(score) + 1) / 2

	return self + int(math.Round(kFactor*(outcome-expected)))
}
