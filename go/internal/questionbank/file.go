package questionbank

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/feud/go/internal/models"
)

//go:embed data/questions.yaml
var defaultBank []byte

// DefaultSet is the name of the set shipped with the server.
const DefaultSet = "sanskrit"

// File is the YAML layout of a question bank file.
type File struct {
	Sets map[string][]QuestionDoc `yaml:"sets"`
}

// QuestionDoc is one question as written in a bank file. The toss-up is the
// question with round 0; it needs no team or number.
type QuestionDoc struct {
	ID      string      `yaml:"id"`
	Text    string      `yaml:"text"`
	Round   int         `yaml:"round"`
	Team    string      `yaml:"team"`
	Number  int         `yaml:"number"`
	Answers []AnswerDoc `yaml:"answers"`
}

// AnswerDoc is one card of a question
type AnswerDoc struct {
	Text  string `yaml:"text"`
	Score int    `yaml:"score"`
}

// LoadFile reads and validates a YAML bank file.
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Default returns the embedded bank.
func Default() (*Bank, error) {
	return Parse(defaultBank)
}

// Parse decodes a YAML bank and validates every set in it.
func Parse(data []byte) (*Bank, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse: %w", models.ErrInvalidQuestionBank, err)
	}
	if len(f.Sets) == 0 {
		return nil, fmt.Errorf("%w: no question sets", models.ErrInvalidQuestionBank)
	}

	b := NewBank()
	for name, docs := range f.Sets {
		if err := b.Add(name, ToQuestions(docs)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ToQuestions converts bank file entries to questions, filling in ids that
// were left out.
func ToQuestions(docs []QuestionDoc) []models.Question {
	qs := make([]models.Question, len(docs))
	for i, d := range docs {
		q := models.Question{
			ID:             strings.TrimSpace(d.ID),
			Text:           strings.TrimSpace(d.Text),
			Round:          d.Round,
			TeamAssignment: models.TeamID(strings.TrimSpace(d.Team)),
			QuestionNumber: d.Number,
			Answers:        make([]models.Answer, len(d.Answers)),
		}
		if q.ID == "" {
			q.ID = questionID(q)
		}
		for j, a := range d.Answers {
			q.Answers[j] = models.Answer{Text: strings.TrimSpace(a.Text), Score: a.Score}
		}
		qs[i] = q
	}
	return qs
}

// FromQuestions is the inverse of ToQuestions.
func FromQuestions(qs []models.Question) []QuestionDoc {
	docs := make([]QuestionDoc, len(qs))
	for i, q := range qs {
		d := QuestionDoc{
			ID:      q.ID,
			Text:    q.Text,
			Round:   q.Round,
			Team:    string(q.TeamAssignment),
			Number:  q.QuestionNumber,
			Answers: make([]AnswerDoc, len(q.Answers)),
		}
		for j, a := range q.Answers {
			d.Answers[j] = AnswerDoc{Text: a.Text, Score: a.Score}
		}
		docs[i] = d
	}
	return docs
}

func questionID(q models.Question) string {
	if q.IsTossUp() {
		return "tossup"
	}
	return fmt.Sprintf("r%d-%s-q%d", q.Round, q.TeamAssignment, q.QuestionNumber)
}
