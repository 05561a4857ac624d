package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ract-lang/ract"
)

var rootCmd = &cobra.Command{
	Use:   "ract",
	Short: "ract is a compiler and bytecode machine for Action!-style programs",
	Long: `ract compiles an Atari-style systems language into typed bytecode
and executes it over a 64KB flat memory image.

Commands:
  build   Compile a source file into a bytecode artifact
  run     Compile (or load) a program and execute it
  disasm  Print the instruction listing of a program
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(buildCmd, runCmd, disasmCmd)
}

// loadProgram accepts source text, a binary artifact or a YAML
// rendering, picked by file extension.
func loadProgram(path string) (*ract.Program, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rbc":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ract.DecodeBinary(f)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ract.UnmarshalText(data)
	default:
		return ract.CompileFile(path)
	}
}

func fail(err error) error {
	fmt.Fprintln(os.Stderr, "error:", err)
	return err
}
