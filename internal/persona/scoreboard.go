package persona

import "strings"

// Scoreboard holds keyword hit counts for every archetype. The zero value is
// not usable; call NewScoreboard.
type Scoreboard struct {
	scores map[Persona]int
}

func NewScoreboard() *Scoreboard {
	s := &Scoreboard{scores: make(map[Persona]int, len(All))}
	for _, p := range All {
		s.scores[p] = 0
	}
	return s
}

// Evaluate scores one transcript. Every keyword of every archetype that occurs
// as a substring adds one point, so a single answer may score several
// archetypes. It returns the total number of hits.
func (s *Scoreboard) Evaluate(transcript string) int {
	text := strings.ToLower(transcript)
	hits := 0
	for _, p := range All {
		for _, kw := range profiles[p].keywords {
			if strings.Contains(text, kw) {
				s.scores[p]++
				hits++
			}
		}
	}
	return hits
}

func (s *Scoreboard) Add(p Persona, n int) {
	if _, ok := s.scores[p]; !ok || n <= 0 {
		return
	}
	s.scores[p] += n
}

func (s *Scoreboard) Score(p Persona) int { return s.scores[p] }

// Winner returns the archetype with the highest score, preferring the earliest
// archetype in All on ties. An all-zero board yields Guardian.
func (s *Scoreboard) Winner() Persona {
	best := All[0]
	for _, p := range All[1:] {
		if s.scores[p] > s.scores[best] {
			best = p
		}
	}
	return best
}

// Snapshot copies the current scores.
func (s *Scoreboard) Snapshot() map[Persona]int {
	out := make(map[Persona]int, len(s.scores))
	for p, n := range s.scores {
		out[p] = n
	}
	return out
}
