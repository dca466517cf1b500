package models

import "slices"

// TossUpRound is the round number of the single sudden-round question.
const TossUpRound = 0

// Answer is one card on the board for a question.
type Answer struct {
	Text     string `json:"text"`
	Score    int    `json:"score"`
	Revealed bool   `json:"revealed"`
}

// Question is one board. Round, TeamAssignment and QuestionNumber place it in a
// team's allotment for a round; the toss-up question has Round 0.
type Question struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Round          int      `json:"round"`
	TeamAssignment TeamID   `json:"team_assignment,omitempty"`
	QuestionNumber int      `json:"question_number"`
	Answers        []Answer `json:"answers"`
}

// IsTossUp reports whether this is the toss-up board
func (q *Question) IsTossUp() bool {
	return q.Round == TossUpRound
}

// RevealAll flips every hidden answer and returns how many changed.
func (q *Question) RevealAll() int {
	n := 0
	for i := range q.Answers {
		if !q.Answers[i].Revealed {
			q.Answers[i].Revealed = true
			n++
		}
	}
	return n
}

// HideAll clears every revealed flag.
func (q *Question) HideAll() {
	for i := range q.Answers {
		q.Answers[i].Revealed = false
	}
}

// AllRevealed reports whether no card is left hidden
func (q *Question) AllRevealed() bool {
	for _, a := range q.Answers {
		if !a.Revealed {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no answer storage with q.
func (q Question) Clone() Question {
	q.Answers = slices.Clone(q.Answers)
	return q
}

// CloneQuestions deep-copies a question list.
func CloneQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	out := make([]Question, len(qs))
	for i := range qs {
		out[i] = qs[i].Clone()
	}
	return out
}
