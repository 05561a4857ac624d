package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/ract-lang/ract"
)

var (
	runEntry     string
	runTrace     bool
	runStepLimit int
)

var runCmd = &cobra.Command{
	Use:   "run <program> [args...]",
	Short: "Compile (or load) a program and execute it",
	Long: `run executes a program from its entry routine, or from a named
routine when --entry is given. Extra arguments are parsed as numbers
and written into the routine's parameter cells.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, err := loadProgram(args[0])
		if err != nil {
			return fail(err)
		}

		opts := []ract.MachineOption{ract.WithStepLimit(runStepLimit)}
		if runTrace {
			opts = append(opts, ract.WithTraceHook(func(ti ract.TraceInfo) {
				fmt.Fprintf(os.Stderr, "%04d %s\n", ti.IP, ti.Op)
			}))
		}
		m := ract.NewMachine(prog, opts...)

		if runEntry == "" {
			if len(args) > 1 {
				return fail(fmt.Errorf("routine arguments need --entry"))
			}
			if err := m.Run(); err != nil {
				return fail(err)
			}
			return nil
		}

		callArgs := make([]ract.Value, 0, len(args)-1)
		for _, a := range args[1:] {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fail(fmt.Errorf("argument %q is not a number", a))
			}
			callArgs = append(callArgs, ract.Int(n))
		}
		res, err := m.Call(runEntry, callArgs...)
		if err != nil {
			return fail(err)
		}
		if res.Width() != "VOID" {
			fmt.Println(res.N())
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runEntry, "entry", "e", "", "routine to execute instead of the program entry")
	runCmd.Flags().BoolVar(&runTrace, "trace", env.Bool("RACT_TRACE"), "print each executed instruction to stderr")
	runCmd.Flags().IntVar(&runStepLimit, "step-limit", env.Int("RACT_STEP_LIMIT", 0), "abort after this many instructions (0 for unlimited)")
}
