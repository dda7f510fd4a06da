package round

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"

	"casino/models"
)

// NewSeed returns 32 random bytes, hex encoded.
func NewSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Commit is the public digest of a seed, published before any card is shown.
func Commit(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

func Verify(seed, commitment string) bool {
	return subtle.ConstantTimeCompare([]byte(Commit(seed)), []byte(commitment)) == 1
}

// Deal returns the full deck order for seed. It is a pure function: the
// Fisher-Yates swaps are driven by HMAC-SHA256(seed, "deck:<n>") blocks, so
// anyone holding the seed reproduces the same permutation.
func Deal(seed string) []models.Card {
	deck := freshDeck()
	src := &stream{key: []byte(seed)}
	for i := len(deck) - 1; i > 0; i-- {
		j := src.intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

type stream struct {
	key     []byte
	counter uint64
	buf     []byte
}

func (s *stream) next() uint64 {
	if len(s.buf) < 8 {
		mac := hmac.New(sha256.New, s.key)
		mac.Write([]byte("deck:" + strconv.FormatUint(s.counter, 10)))
		s.counter++
		s.buf = mac.Sum(nil)
	}
	v := binary.BigEndian.Uint64(s.buf[:8])
	s.buf = s.buf[8:]
	return v
}

// intn draws uniformly from [0, n) with rejection sampling.
func (s *stream) intn(n int) int {
	limit := math.MaxUint64 - math.MaxUint64%uint64(n)
	for {
		if v := s.next(); v < limit {
			return int(v % uint64(n))
		}
	}
}

// cryptoRoll returns a uniform float in [0, 1).
func cryptoRoll() float64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// no entropy: never flip
		return 1
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}
