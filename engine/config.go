package engine

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxSearchDepth is the absolute iterative-deepening ceiling.
const MaxSearchDepth = 10

// MaxBranchingCap covers every cell of the largest board.
const MaxBranchingCap = MaxBoardSide * MaxBoardSide

type Config struct {
	MaxSearchDepth        int     `json:"max_search_depth" yaml:"max_search_depth" validate:"gte=0,lte=10"`
	MaxSearchSeconds      float64 `json:"max_search_seconds" yaml:"max_search_seconds" validate:"gt=0,lte=3600"`
	BranchingCapAtRoot    int     `json:"branching_cap_at_root" yaml:"branching_cap_at_root" validate:"gte=1,lte=961"`
	BranchingCapBelowRoot int     `json:"branching_cap_below_root" yaml:"branching_cap_below_root" validate:"gte=1,lte=961"`
	NeighborhoodRadius    int     `json:"neighborhood_radius" yaml:"neighborhood_radius" validate:"gte=1,lte=30"`
	CutOffScore           int     `json:"cut_off_score" yaml:"cut_off_score" validate:"gt=0,lt=100000"`
	CacheMaxSizeWin       int     `json:"cache_maxsize_win" yaml:"cache_maxsize_win" validate:"gte=0"`
	CacheMaxSizeEval      int     `json:"cache_maxsize_eval" yaml:"cache_maxsize_eval" validate:"gte=0"`
	EnableEvalCache       bool    `json:"enable_eval_cache" yaml:"enable_eval_cache"`
	UseSymmetry           bool    `json:"use_symmetry" yaml:"use_symmetry"`
	Seed                  uint64  `json:"seed" yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		MaxSearchDepth:        MaxSearchDepth,
		MaxSearchSeconds:      2,
		BranchingCapAtRoot:    MaxBranchingCap,
		BranchingCapBelowRoot: 8,
		NeighborhoodRadius:    1,
		CutOffScore:           CutOff,

		// 0 = unbounded
		CacheMaxSizeWin:  0,
		CacheMaxSizeEval: 1_000_000,
		EnableEvalCache:  true,
		UseSymmetry:      false,

		// 0 = seed from system entropy
		Seed: 0,
	}
}

var configValidate = validator.New()

func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	}
	return nil
}

func (c Config) SearchBudget() time.Duration {
	return time.Duration(c.MaxSearchSeconds * float64(time.Second))
}
