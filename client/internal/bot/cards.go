package bot

import "strings"

// Rand is the random source behind shuffles, flips and flavor picks.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

type Card struct {
	Rank string
	Suit string
}

var (
	ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
	suits = []string{"♠", "♥", "♦", "♣"}
)

func (c Card) String() string { return c.Rank + c.Suit }

func (c Card) points() int {
	switch c.Rank {
	case "A":
		return 11
	case "J", "Q", "K":
		return 10
	}
	n := 0
	for _, d := range c.Rank {
		n = n*10 + int(d-'0')
	}
	return n
}

// NewDeck returns a shuffled 52-card deck.
func NewDeck(rng Rand) []Card {
	deck := make([]Card, 0, len(ranks)*len(suits))
	for _, s := range suits {
		for _, r := range ranks {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// HandValue counts aces as 11, dropping them to 1 one at a time while the
// total is over 21.
func HandValue(hand []Card) int {
	total, aces := 0, 0
	for _, c := range hand {
		total += c.points()
		if c.Rank == "A" {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

func showHand(hand []Card) string {
	parts := make([]string, len(hand))
	for i, c := range hand {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
