package domain

import "strconv"

// RoundWord is one word of a round. Text is a snapshot so catalog changes never
// rewrite history.
type RoundWord struct {
	WordID string     `json:"wordId"`
	Text   string     `json:"text"`
	Status WordStatus `json:"status"`

	// Penalized is set when a skip penalty was actually charged for this word.
	Penalized bool `json:"penalized,omitempty"`
}

// Round represents a single timed turn of one team
type Round struct {
	TeamIndex int         `json:"teamIndex"`
	Words     []RoundWord `json:"words"`
}

// NewRound creates a round for the given team with every word pending
func NewRound(teamIndex int, words []Word) Round {
	entries := make([]RoundWord, 0, len(words))
	for _, w := range words {
		entries = append(entries, RoundWord{
			WordID: w.ID,
			Text:   w.Text,
			Status: WordPending,
		})
	}

	return Round{
		TeamIndex: teamIndex,
		Words:     entries,
	}
}

// Count returns the number of words with the given status
func (r *Round) Count(status WordStatus) int {
	n := 0
	for _, w := range r.Words {
		if w.Status == status {
			n++
		}
	}
	return n
}

// word returns the entry at index or a NotFoundError
func (r *Round) word(index int) (*RoundWord, error) {
	if index < 0 || index >= len(r.Words) {
		return nil, &NotFoundError{Kind: "word", ID: strconv.Itoa(index)}
	}
	return &r.Words[index], nil
}

// Clone returns a deep copy of the round
func (r Round) Clone() Round {
	words := make([]RoundWord, len(r.Words))
	copy(words, r.Words)
	r.Words = words
	return r
}
