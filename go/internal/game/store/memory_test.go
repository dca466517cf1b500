package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/feud/go/internal/game/gametest"
	"github.com/mcdev12/feud/go/internal/models"
)

func newStoreWithGame(t *testing.T) (*MemoryStore, *clockwork.FakeClock, *models.Game) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(gametest.Epoch)
	s := NewMemoryStore(clock)
	g := gametest.NewGame(true)
	require.NoError(t, s.Create(context.Background(), g))
	return s, clock, g
}

func TestCreate_CodeTaken(t *testing.T) {
	s, _, g := newStoreWithGame(t)

	other := models.NewGame(uuid.New(), g.Code, gametest.Questions(false), gametest.Epoch)
	err := s.Create(context.Background(), other)

	assert.ErrorIs(t, err, ErrCodeTaken)
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	s, _, g := newStoreWithGame(t)
	ctx := context.Background()

	got, err := s.Get(ctx, g.Code)
	require.NoError(t, err)
	got.Teams[0].Score = 999
	got.Questions[0].Answers[0].Revealed = true

	again, err := s.Get(ctx, g.Code)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Teams[0].Score)
	assert.False(t, again.Questions[0].Answers[0].Revealed)

	_, err = s.Get(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, models.ErrGameNotFound)
}

func TestUpdate_CommitsAndStamps(t *testing.T) {
	s, clock, g := newStoreWithGame(t)
	ctx := context.Background()
	clock.Advance(time.Minute)

	out, err := s.Update(ctx, g.Code, func(g *models.Game) error {
		g.Teams[1].Name = "Pandavas"
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Pandavas", out.Teams[1].Name)
	assert.Equal(t, gametest.Epoch.Add(time.Minute), out.UpdatedAt)

	stored, err := s.Get(ctx, g.Code)
	require.NoError(t, err)
	assert.Equal(t, "Pandavas", stored.Teams[1].Name)
}

func TestUpdate_ErrorLeavesStateUntouched(t *testing.T) {
	s, _, g := newStoreWithGame(t)
	ctx := context.Background()
	before, err := s.Get(ctx, g.Code)
	require.NoError(t, err)
	boom := errors.New("boom")

	_, err = s.Update(ctx, g.Code, func(g *models.Game) error {
		g.Teams[0].Score = 50
		g.Questions[0].RevealAll()
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := s.Get(ctx, g.Code)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdate_RejectsBrokenInvariants(t *testing.T) {
	s, _, g := newStoreWithGame(t)
	ctx := context.Background()

	_, err := s.Update(ctx, g.Code, func(g *models.Game) error {
		g.Status = models.StatusActive
		g.Teams[0].Active = true
		g.Teams[1].Active = true
		return nil
	})
	assert.ErrorIs(t, err, models.ErrInvalidGameState)

	stored, err := s.Get(ctx, g.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, stored.Status)
}

func TestUpdate_SerializesPerGame(t *testing.T) {
	s, _, g := newStoreWithGame(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, g.Code, func(g *models.Game) error {
				g.Teams[0].Score++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := s.Get(ctx, g.Code)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Teams[0].Score)
}

func TestPlayers_IndexedOnUpdate(t *testing.T) {
	s, _, g := newStoreWithGame(t)
	ctx := context.Background()

	var pid string
	_, err := s.Update(ctx, g.Code, func(g *models.Game) error {
		pid = gametest.AddPlayer(g, "Draupadi", models.TeamTwo)
		return nil
	})
	require.NoError(t, err)

	p, code, err := s.GetPlayer(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, g.Code, code)
	assert.Equal(t, "Draupadi", p.Name)

	out, err := s.UpdatePlayer(ctx, pid, func(_ *models.Game, p *models.Player) error {
		p.Connected = false
		return nil
	})
	require.NoError(t, err)
	assert.False(t, out.Player(pid).Connected)

	_, _, err = s.GetPlayer(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)
}

func TestDelete(t *testing.T) {
	s, _, g := newStoreWithGame(t)
	ctx := context.Background()
	var pid string
	_, err := s.Update(ctx, g.Code, func(g *models.Game) error {
		pid = gametest.AddPlayer(g, "Karna", models.TeamOne)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, g.Code))

	assert.False(t, s.Exists(ctx, g.Code))
	_, _, err = s.GetPlayer(ctx, pid)
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)
	_, err = s.Update(ctx, g.Code, func(*models.Game) error { return nil })
	assert.ErrorIs(t, err, models.ErrGameNotFound)
	assert.ErrorIs(t, s.Delete(ctx, g.Code), models.ErrGameNotFound)
}

func TestCodesAndSweep(t *testing.T) {
	s, clock, old := newStoreWithGame(t)
	ctx := context.Background()

	clock.Advance(30 * time.Minute)
	fresh := models.NewGame(uuid.New(), "XYZ789", gametest.Questions(true), clock.Now())
	require.NoError(t, s.Create(ctx, fresh))
	assert.Equal(t, []string{old.Code, fresh.Code}, s.Codes(ctx))

	removed := s.SweepOlderThan(ctx, gametest.Epoch.Add(time.Minute))

	assert.Equal(t, []string{old.Code}, removed)
	assert.Equal(t, []string{fresh.Code}, s.Codes(ctx))
}

func TestUpdateAndAnnounce_HoldsGameUntilAnnounced(t *testing.T) {
	s, _, g := newStoreWithGame(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		order []int
	)
	record := func(g *models.Game) {
		mu.Lock()
		order = append(order, g.Teams[0].Score)
		mu.Unlock()
	}

	first := make(chan error, 1)
	go func() {
		_, err := s.UpdateAndAnnounce(ctx, g.Code, func(g *models.Game) error {
			g.Teams[0].Score = 1
			return nil
		}, func(g *models.Game) {
			close(entered)
			<-release
			record(g)
		})
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := s.UpdateAndAnnounce(ctx, g.Code, func(g *models.Game) error {
			g.Teams[0].Score = 2
			return nil
		}, record)
		second <- err
	}()

	select {
	case <-second:
		t.Fatal("second update committed while the first was still announcing")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, []int{1, 2}, order)
}

func TestUpdateAndAnnounce_SkipsFailedMutations(t *testing.T) {
	s, _, g := newStoreWithGame(t)
	called := false

	_, err := s.UpdateAndAnnounce(context.Background(), g.Code, func(*models.Game) error {
		return errors.New("rejected")
	}, func(*models.Game) { called = true })

	assert.Error(t, err)
	assert.False(t, called)
}
