package round

import "casino/models"

var (
	suits = []string{"S", "H", "D", "C"}
	ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

const DeckSize = 52

func freshDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, s := range suits {
		for _, r := range ranks {
			deck = append(deck, models.Card{Rank: r, Suit: s})
		}
	}
	return deck
}

func cardValue(rank string) int {
	switch rank {
	case "A":
		return 11
	case "J", "Q", "K", "10":
		return 10
	}
	return int(rank[0] - '0')
}

// Score counts aces as 11 and demotes them to 1 one at a time while the
// total exceeds 21. soft reports whether an ace is still counted as 11.
func Score(cards []models.Card) (total int, soft bool) {
	aces := 0
	for _, c := range cards {
		if c.Hidden {
			continue
		}
		total += cardValue(c.Rank)
		if c.Rank == "A" {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total, aces > 0
}

func Total(cards []models.Card) int {
	t, _ := Score(cards)
	return t
}

// IsNatural is a two-card 21.
func IsNatural(cards []models.Card) bool {
	return len(cards) == 2 && Total(cards) == 21
}

// DealerStands is the draw policy: the dealer draws below 17 and stands on
// every 17, soft or hard.
func DealerStands(cards []models.Card) bool {
	return Total(cards) >= 17
}

// PlayDealer draws from deck at cursor, one card per step, until the dealer
// stands or the deck runs out.
func PlayDealer(dealer, deck []models.Card, cursor int) ([]models.Card, int) {
	for !DealerStands(dealer) && cursor < len(deck) {
		dealer = append(dealer, deck[cursor])
		cursor++
	}
	return dealer, cursor
}

// Outcome compares finished hands. Bust and naturals take precedence over
// totals.
func Outcome(player, dealer []models.Card) string {
	ps, ds := Total(player), Total(dealer)
	pn, dn := IsNatural(player), IsNatural(dealer)
	switch {
	case ps > 21:
		return models.ResultBust
	case ds > 21:
		if pn {
			return models.ResultBlackjack
		}
		return models.ResultWin
	case pn && !dn:
		return models.ResultBlackjack
	case ps > ds:
		return models.ResultWin
	case ps == ds:
		return models.ResultPush
	}
	return models.ResultLose
}
