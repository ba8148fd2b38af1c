package main

import (
	"fmt"
	"io"
	"os"

	"github.com/project-lighter/sparkwheel"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(sparkwheel.ExitCode(err))
	}
}

// run builds a fresh command tree, executes it against args, and
// returns any error it produced — kept separate from main so tests can
// drive the CLI without touching os.Exit.
func run(outW io.Writer, args []string) error {
	cmd := newRootCmd()
	cmd.SetOut(outW)
	cmd.SetArgs(args)
	return cmd.Execute()
}
