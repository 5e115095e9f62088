package balance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/battle"
)

func TestLoadFS(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, r battle.Rules)
	}{
		{
			name:    "overrides merge over defaults",
			content: `{"maxHealth":120,"actions":{"kick":{"energyCost":25,"hitChance":0.7,"baseDamage":20}}}`,
			check: func(t *testing.T, r battle.Rules) {
				assert.Equal(t, 120, r.MaxHealth)
				assert.Equal(t, 100, r.MaxEnergy)
				assert.Equal(t, 25, r.Actions[battle.ActionKick].EnergyCost)
				assert.Zero(t, r.Actions[battle.ActionKick].CritChance, "listed actions replace the stock entry")
				assert.Equal(t, 10, r.Actions[battle.ActionPunch].EnergyCost)
			},
		},
		{
			name:    "empty object keeps defaults",
			content: `{}`,
			check: func(t *testing.T, r battle.Rules) {
				assert.Equal(t, battle.DefaultRules(), r)
			},
		},
		{name: "negative cost", content: `{"actions":{"punch":{"energyCost":-1,"hitChance":0.5}}}`, wantErr: true},
		{name: "probability above one", content: `{"actions":{"kick":{"energyCost":5,"hitChance":1.5}}}`, wantErr: true},
		{name: "unknown timeout action", content: `{"timeoutAction":"headbutt"}`, wantErr: true},
		{name: "unknown field", content: `{"maxHealh":90}`, wantErr: true},
		{name: "not json", content: `maxHealth: 90`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/balance.json", []byte(tt.content), 0o644))

			rules, err := LoadFS(fs, "/balance.json")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, rules)
		})
	}
}

func TestLoadFS_Missing(t *testing.T) {
	_, err := LoadFS(afero.NewMemMapFs(), "/nope.json")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "balance.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"maxHealth":100}`), 0o644))

	reloads := make(chan error, 64)
	w, err := NewWatcher(path, OnReload(func(_ battle.Rules, err error) {
		select {
		case reloads <- err:
		default:
		}
	}))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, 100, w.Current().MaxHealth)
	before := w.Current()

	require.NoError(t, os.WriteFile(path, []byte(`{"maxHealth":150}`), 0o644))
	require.Eventually(t, func() bool { return w.Current().MaxHealth == 150 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 100, before.MaxHealth, "values handed out earlier never change")

	// A broken file is logged and ignored.
	require.NoError(t, os.WriteFile(path, []byte(`{"maxHealth":-1}`), 0o644))
	timeout := time.After(2 * time.Second)
	for failed := false; !failed; {
		select {
		case err := <-reloads:
			failed = err != nil
		case <-timeout:
			t.Fatal("no failed reload after writing a broken file")
		}
	}
	assert.Equal(t, 150, w.Current().MaxHealth)
}

func TestWatcher_RejectsInvalidInitialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chanceCap":2}`), 0o644))
	_, err := NewWatcher(path)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestRewardScript(t *testing.T) {
	winner := domain.Player{ID: "w", Level: 2}
	loser := domain.Player{ID: "l", Level: 4}

	t.Run("script result", func(t *testing.T) {
		s, err := NewRewardScript([]byte(`
winner_xp = 40 + turns * 3 + (loser_level - winner_level)
loser_xp = winner_xp / 4
`), nil)
		require.NoError(t, err)

		win, lose := s.Compute(winner, loser, 10)
		assert.Equal(t, 72, win.XP)
		assert.Equal(t, 18, lose.XP)
		assert.Equal(t, 14, win.Coins)
		assert.Equal(t, battle.ResultWin, win.Result)
		assert.Equal(t, "l", lose.PlayerID)

		// Runs do not leak state into each other.
		win, _ = s.Compute(winner, loser, 0)
		assert.Equal(t, 42, win.XP)
	})

	t.Run("loser not smaller falls back", func(t *testing.T) {
		s, err := NewRewardScript([]byte(`winner_xp = 10; loser_xp = 10`), nil)
		require.NoError(t, err)
		win, lose := s.Compute(winner, loser, 10)
		wantWin, wantLose := battle.ComputeRewards(winner, loser, 10)
		assert.Equal(t, wantWin, win)
		assert.Equal(t, wantLose, lose)
	})

	t.Run("zero consolation falls back", func(t *testing.T) {
		s, err := NewRewardScript([]byte(`winner_xp = 100`), nil)
		require.NoError(t, err)
		_, lose := s.Compute(winner, loser, 10)
		assert.Positive(t, lose.XP)
	})

	t.Run("runtime error falls back", func(t *testing.T) {
		s, err := NewRewardScript([]byte(`winner_xp = 100 / (turns - turns)`), nil)
		require.NoError(t, err)
		win, _ := s.Compute(winner, loser, 3)
		assert.Equal(t, battle.WinnerXP(2, 4, 3), win.XP)
	})

	t.Run("compile error", func(t *testing.T) {
		_, err := NewRewardScript([]byte(`winner_xp = `), nil)
		assert.Error(t, err)
	})

	t.Run("load from file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/rewards.tengo", []byte(`winner_xp = 60; loser_xp = 20`), 0o644))
		s, err := LoadRewardScript(fs, "/rewards.tengo", nil)
		require.NoError(t, err)
		win, lose := s.Compute(winner, loser, 1)
		assert.Equal(t, 60, win.XP)
		assert.Equal(t, 20, lose.XP)
	})
}
