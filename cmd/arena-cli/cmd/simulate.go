package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/imfiit/arena/cmd/arena-cli/internal/sim"
	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/balance"
	"github.com/imfiit/arena/internal/modules/arena/battle"
)

var (
	simRed         string
	simBlue        string
	simSeed        int64
	simMaxTurns    int
	simBalanceFile string
	simRewardFile  string
	simJSON        bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play an offline battle with a fixed seed",
	Long: `Play a battle on the real engine without a server. Both fighters use the
strongest action they can afford. The same seed and fighters always produce
the same log, which makes it easy to compare balance files.

Fighters are given as id,level,strength,endurance; red moves first.

Examples:
  arena-cli simulate --seed 42
  arena-cli simulate --red rocky,8,60,20 --blue ivan,8,20,60 --balance balance.json
  arena-cli simulate --reward-script rewards.tengo --json`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	red, err := sim.ParsePlayer(simRed)
	if err != nil {
		return err
	}
	blue, err := sim.ParsePlayer(simBlue)
	if err != nil {
		return err
	}
	if red.ID == blue.ID {
		return errors.New("fighters need distinct ids")
	}

	cfg := sim.Config{Players: [2]domain.Player{red, blue}, Seed: simSeed, MaxTurns: simMaxTurns}
	fs := afero.NewOsFs()
	if simBalanceFile != "" {
		if cfg.Rules, err = balance.LoadFS(fs, simBalanceFile); err != nil {
			return err
		}
	}
	if simRewardFile != "" {
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
		if cfg.Policy, err = balance.LoadRewardScript(fs, simRewardFile, logger); err != nil {
			return err
		}
	}

	sum, err := sim.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if simJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	return printSummary(cmd.OutOrStdout(), sum)
}

func printSummary(w io.Writer, sum battle.Summary) error {
	title := cases.Title(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TURN\tACTOR\tACTION\tRESULT\tDAMAGE")
	for _, rec := range sum.Log {
		result := "hit"
		switch {
		case rec.Note != "":
			result = rec.Note
		case !rec.Hit:
			result = "miss"
		case rec.Critical:
			result = "critical"
		case rec.Blocked:
			result = "blocked"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", rec.Turn, rec.ActorID, title.String(string(rec.Action)), result, rec.Damage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if sum.Draw {
		fmt.Fprintf(w, "Draw after %d turns (%s)\n", sum.TotalTurns, sum.Reason)
	} else {
		fmt.Fprintf(w, "%s wins by %s after %d turns\n", sum.WinnerID, title.String(strings.ReplaceAll(string(sum.Reason), "_", " ")), sum.TotalTurns)
	}
	for _, f := range sum.Final {
		fmt.Fprintf(w, "  %-12s health %3d/%d  energy %3d/%d  damage dealt %d\n",
			f.ID, f.Health, f.MaxHealth, f.Energy, f.MaxEnergy, sum.DamageDealt[f.ID])
	}
	for _, r := range sum.Rewards {
		fmt.Fprintf(w, "  %-12s %-4s +%d xp  +%d coins\n", r.PlayerID, r.Result, r.XP, r.Coins)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simRed, "red", "red,5,30,15", "First fighter as id,level,strength,endurance")
	simulateCmd.Flags().StringVar(&simBlue, "blue", "blue,5,15,30", "Second fighter as id,level,strength,endurance")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "Battle seed")
	simulateCmd.Flags().IntVar(&simMaxTurns, "max-turns", battle.DefaultMaxTurns, "Turn ceiling")
	simulateCmd.Flags().StringVar(&simBalanceFile, "balance", "", "Balance rules JSON file")
	simulateCmd.Flags().StringVar(&simRewardFile, "reward-script", "", "Tengo reward script")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "Print the full battle summary as JSON")
}
