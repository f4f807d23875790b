package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheKrainBow/mnk/engine"
	"github.com/TheKrainBow/mnk/internal/settings"
)

type moveRequest struct {
	Cells     [][]engine.Cell `json:"cells"`
	K         int             `json:"k"`
	Starting  string          `json:"starting"`
	Maximizer string          `json:"maximizer"`
	BudgetMs  int             `json:"budget_ms"`
}

func newMoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move",
		Short: "Read a board as JSON on stdin and print the chosen move",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			eng, err := engine.New(cfg.Engine, engine.WithLogger(log))
			if err != nil {
				return err
			}
			return chooseFromReader(eng, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func chooseFromReader(eng *engine.Engine, cfg settings.File, in io.Reader, out io.Writer) error {
	var req moveRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	starting := engine.CellX
	if req.Starting != "" {
		side, err := engine.ParseSide(req.Starting)
		if err != nil {
			return err
		}
		starting = side
	}
	board, err := engine.BoardFromCells(req.Cells, req.K, starting)
	if err != nil {
		return err
	}
	maximizer := board.Turn()
	if req.Maximizer != "" {
		if maximizer, err = engine.ParseSide(req.Maximizer); err != nil {
			return err
		}
	}
	budget := cfg.Server.DefaultBudget()
	if req.BudgetMs > 0 {
		budget = time.Duration(req.BudgetMs) * time.Millisecond
	}

	decision, err := eng.ChooseMoveWithin(board, maximizer, budget)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(decision)
}
