package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <program>",
	Short: "Print the instruction listing of a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, err := loadProgram(args[0])
		if err != nil {
			return fail(err)
		}
		fmt.Print(prog.Disassemble())
		return nil
	},
}
