package timing

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"social_autoposter/internal/domain"
)

// fallbackHours is used for platforms missing from the table.
var fallbackHours = []int{9, 15, 21}

// Selector picks the next preferred posting slot for a platform. Minutes are
// randomised so posts do not cluster on the hour.
type Selector struct {
	hours map[domain.Platform][]int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector(hours map[string][]int, rnd *rand.Rand) *Selector {
	table := make(map[domain.Platform][]int, len(hours))
	for platform, hs := range hours {
		sorted := append([]int(nil), hs...)
		sort.Ints(sorted)
		table[domain.Platform(platform)] = sorted
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return &Selector{hours: table, rnd: rnd}
}

// Hours returns the ascending optimal hours for a platform.
func (s *Selector) Hours(platform domain.Platform) []int {
	if hs, ok := s.hours[platform]; ok && len(hs) > 0 {
		return append([]int(nil), hs...)
	}
	return append([]int(nil), fallbackHours...)
}

// RandomMinute returns a minute in [0, 59).
func (s *Selector) RandomMinute() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(59)
}

// NextOptimalTime returns the first optimal hour strictly after now's hour,
// today, or the first optimal hour tomorrow when today's slots have passed.
func (s *Selector) NextOptimalTime(platform domain.Platform, now time.Time) time.Time {
	hours := s.Hours(platform)

	day := now
	next := -1
	for _, h := range hours {
		if h > now.Hour() {
			next = h
			break
		}
	}
	if next < 0 {
		next = hours[0]
		day = now.AddDate(0, 0, 1)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), next, s.RandomMinute(), 0, 0, now.Location())
}
