package questionbank

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/feud/go/internal/game/gametest"
	"github.com/mcdev12/feud/go/internal/models"
)

func TestBank_AddAndQuestions(t *testing.T) {
	ctx := context.Background()
	b := NewBank()
	qs := gametest.Questions(true)
	qs[0].Answers[0].Revealed = true

	require.NoError(t, b.Add("fixture", qs))

	got, err := b.Questions(ctx, "fixture")
	require.NoError(t, err)
	require.Len(t, got, len(qs))
	assert.False(t, got[0].Answers[0].Revealed, "stored cards start hidden")

	got[1].Answers[0].Text = "changed"
	again, err := b.Questions(ctx, "fixture")
	require.NoError(t, err)
	assert.Equal(t, "Agni", again[1].Answers[0].Text)

	assert.Equal(t, []string{"fixture"}, b.Sets())
	assert.Equal(t, 1, b.Len())
}

func TestBank_UnknownSet(t *testing.T) {
	_, err := NewBank().Questions(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSetNotFound)
}

func TestBank_RejectsIncompleteSet(t *testing.T) {
	b := NewBank()
	qs := gametest.Questions(false)

	err := b.Add("short", qs[:len(qs)-1])

	assert.ErrorIs(t, err, models.ErrInvalidQuestionBank)
	assert.Zero(t, b.Len())
	assert.ErrorIs(t, b.Add("", qs), models.ErrInvalidQuestionBank)
}

func TestDefault(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	qs, err := b.Questions(context.Background(), DefaultSet)
	require.NoError(t, err)
	require.Len(t, qs, 1+models.ScoredRounds*2*models.QuestionsPerTurn)

	assert.True(t, qs[0].IsTossUp())
	assert.Equal(t, "tossup", qs[0].ID)
	assert.Equal(t, "r1-team1-q1", qs[1].ID)
	for _, q := range qs {
		assert.NotEmpty(t, q.Text, q.ID)
		assert.GreaterOrEqual(t, len(q.Answers), 4, q.ID)
	}
}

func TestLoadFile(t *testing.T) {
	f := File{Sets: map[string][]QuestionDoc{
		"mini": FromQuestions(gametest.Questions(false)),
	}}
	data, err := yaml.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	b, err := LoadFile(path)
	require.NoError(t, err)

	qs, err := b.Questions(context.Background(), "mini")
	require.NoError(t, err)
	assert.Equal(t, gametest.Questions(false), qs)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("sets: [unterminated"))
	assert.ErrorIs(t, err, models.ErrInvalidQuestionBank)

	_, err = Parse([]byte("sets: {}"))
	assert.ErrorIs(t, err, models.ErrInvalidQuestionBank)
}

func TestToQuestions_FillsIDs(t *testing.T) {
	qs := ToQuestions([]QuestionDoc{
		{Text: " Name a Veda ", Round: 0, Answers: []AnswerDoc{{Text: " Rigveda ", Score: 50}}},
		{Text: "Slot", Round: 2, Team: "team2", Number: 3},
		{ID: "custom", Text: "Named", Round: 1, Team: "team1", Number: 1},
	})

	assert.Equal(t, "tossup", qs[0].ID)
	assert.Equal(t, "Name a Veda", qs[0].Text)
	assert.Equal(t, "Rigveda", qs[0].Answers[0].Text)
	assert.Equal(t, "r2-team2-q3", qs[1].ID)
	assert.Equal(t, models.TeamTwo, qs[1].TeamAssignment)
	assert.Equal(t, "custom", qs[2].ID)
}
