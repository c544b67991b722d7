// Package matcher turns free text into an assistant reply using a cheap,
// explainable keyword-overlap score over a static knowledge base, falling back
// to keyword-triggered canned replies and finally a default greeting.
package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/ent0n29/fundora/internal/persona"
)

const (
	questionWordWeight = 2
	answerWordWeight   = 1
	phraseBonus        = 10
	phrasePrefixRunes  = 15
	minWordRunes       = 4 // words must be longer than 3 characters
	confidenceFloor    = 3 // scores at or below this are not a match
)

// Source reports which rung of the fallback ladder produced a reply.
type Source string

const (
	SourceKnowledge Source = "knowledge"
	SourceKeyword   Source = "keyword"
	SourceDefault   Source = "default"
)

// Result is a matched reply before and after persona framing.
type Result struct {
	Reply   string          `json:"reply"`
	Base    string          `json:"base"`
	Source  Source          `json:"source"`
	EntryID string          `json:"entry_id,omitempty"`
	Keyword string          `json:"keyword,omitempty"`
	Score   int             `json:"score"`
	Persona persona.Persona `json:"persona,omitempty"`
}

// Context carries the caller state that shapes the fallback ladder and framing.
type Context struct {
	HasHistory bool
	Persona    persona.Persona
}

type Matcher struct {
	entries []Entry
}

// New builds a matcher over entries. A nil slice uses DefaultKnowledgeBase.
func New(entries []Entry) *Matcher {
	if entries == nil {
		entries = DefaultKnowledgeBase()
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Matcher{entries: cp}
}

func (m *Matcher) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Match always returns a non-empty reply.
func (m *Matcher) Match(input string, c Context) Result {
	text := strings.ToLower(input)

	var res Result
	if entry, score, ok := m.best(text); ok {
		res = Result{Base: entry.Answer, Source: SourceKnowledge, EntryID: entry.ID, Score: score}
	} else if kw, reply, ok := keywordFallback(text); ok {
		res = Result{Base: reply, Source: SourceKeyword, Keyword: kw, Score: score}
	} else {
		res = Result{Base: defaultReplyFirstTime, Source: SourceDefault, Score: score}
		if c.HasHistory {
			res.Base = defaultReplyWithContext
		}
	}

	res.Persona = c.Persona
	res.Reply = c.Persona.Prefix() + res.Base
	return res
}

// best returns the highest scoring entry. The first entry wins ties, and a
// best score at or below the confidence floor is reported as no match.
func (m *Matcher) best(text string) (Entry, int, bool) {
	bestScore := 0
	bestIdx := -1
	for i, e := range m.entries {
		s := Score(text, e)
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore <= confidenceFloor {
		return Entry{}, bestScore, false
	}
	return m.entries[bestIdx], bestScore, true
}

// Score rates how well lowercase text matches e. Question words count double,
// answer words once, and containing the first 15 characters of the question
// earns a bonus of 10.
func Score(text string, e Entry) int {
	q := strings.ToLower(e.Question)
	score := wordHits(text, q) * questionWordWeight
	score += wordHits(text, strings.ToLower(e.Answer)) * answerWordWeight
	if strings.Contains(text, runePrefix(q, phrasePrefixRunes)) {
		score += phraseBonus
	}
	return score
}

// wordHits counts space separated words of source (punctuation included) that
// are long enough and occur in text. Repeated words count every time.
func wordHits(text, source string) int {
	n := 0
	for _, w := range strings.Split(source, " ") {
		if utf8.RuneCountInString(w) < minWordRunes {
			continue
		}
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func runePrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func keywordFallback(text string) (string, string, bool) {
	for _, kr := range keywordReplies {
		if strings.Contains(text, kr.keyword) {
			return kr.keyword, kr.reply, true
		}
	}
	return "", "", false
}
