package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ract-lang/ract"
)

var (
	buildOut  string
	buildYAML bool
)

var buildCmd = &cobra.Command{
	Use:   "build <source>",
	Short: "Compile a source file into a bytecode artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		prog, err := ract.CompileFile(src)
		if err != nil {
			return fail(err)
		}

		out := buildOut
		if out == "" {
			ext := ".rbc"
			if buildYAML {
				ext = ".yaml"
			}
			out = strings.TrimSuffix(src, filepath.Ext(src)) + ext
		}

		if buildYAML {
			text, err := prog.MarshalText()
			if err != nil {
				return fail(err)
			}
			return os.WriteFile(out, text, 0644)
		}

		f, err := os.Create(out)
		if err != nil {
			return fail(err)
		}
		defer f.Close()
		if err := prog.EncodeBinary(f); err != nil {
			return fail(err)
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "output path (default: source with artifact extension)")
	buildCmd.Flags().BoolVarP(&buildYAML, "yaml", "y", false, "write a YAML rendering instead of the binary artifact")
}
