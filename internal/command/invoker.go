package command

import (
	"context"

	"github.com/torosent/cosweep/internal/sweep"
)

// Invoker runs Cmd once per trial with the positional arguments from Params.
type Invoker struct {
	Cmd    *Command
	Params sweep.Params
	// ExtraEnv, when set, supplies per-invocation environment entries
	// derived from the invocation context.
	ExtraEnv func(ctx context.Context) []string
}

func (i *Invoker) Invoke(ctx context.Context, trial sweep.Trial) error {
	var extra []string
	if i.ExtraEnv != nil {
		extra = i.ExtraEnv(ctx)
	}
	return i.Cmd.Run(ctx, i.Params.Args(trial), extra...)
}
