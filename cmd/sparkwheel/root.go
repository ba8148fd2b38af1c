package main

import (
	"fmt"
	"sort"

	"github.com/project-lighter/sparkwheel"
	"github.com/project-lighter/sparkwheel/internal/fsutil"
	"github.com/spf13/cobra"
)

// newRootCmd builds a fresh command tree, letting tests construct one
// per run() call instead of sharing global command state.
func newRootCmd() *cobra.Command {
	var files []string
	var dirs []string
	var overrides []string
	var allowMissingReference bool
	var disableExpressions bool

	root := &cobra.Command{
		Use:           "sparkwheel",
		Short:         "Resolve layered YAML configuration graphs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringArrayVarP(&files, "file", "f", nil, "YAML layer file (repeatable, applied in order)")
	root.PersistentFlags().StringArrayVarP(&dirs, "dir", "d", nil, "directory of .yaml layer files, loaded in lexical order (repeatable)")
	root.PersistentFlags().StringArrayVarP(&overrides, "override", "o", nil, "override string k::p=v, =k::p=v, or ~k::p[=v] (repeatable)")
	root.PersistentFlags().BoolVar(&allowMissingReference, "allow-missing-reference", false, "degrade a missing @-reference to nil instead of failing")
	root.PersistentFlags().BoolVar(&disableExpressions, "disable-expressions", false, "return $ expression sources as literal strings instead of evaluating them")

	build := func() (*sparkwheel.Config, error) {
		settings := sparkwheel.Settings{
			AllowMissingReference: allowMissingReference,
			DisableExpressions:    disableExpressions,
		}
		cfg := sparkwheel.New(sparkwheel.WithSettings(settings))

		layerFiles := append([]string{}, files...)
		for _, dir := range dirs {
			found, err := fsutil.FindFilesByExtension(dir, ".yaml")
			if err != nil {
				return nil, err
			}
			sort.Strings(found)
			layerFiles = append(layerFiles, found...)
		}

		if err := cfg.Load(layerFiles...); err != nil {
			return nil, err
		}
		if err := cfg.Merge(overrides...); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(newResolveCmd(build))
	root.AddCommand(newGetCmd(build))
	root.AddCommand(newKeysCmd(build))
	return root
}

func newResolveCmd(build func() (*sparkwheel.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Resolve an identifier to its fully materialized value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := build()
			if err != nil {
				return err
			}
			v, err := cfg.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", v)
			return nil
		},
	}
}

func newGetCmd(build func() (*sparkwheel.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "get <identifier>",
		Short: "Print the raw, pre-resolution node at an identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := build()
			if err != nil {
				return err
			}
			n, ok := cfg.Get(args[0])
			if !ok {
				return &sparkwheel.KeyNotFoundError{Identifier: args[0]}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", n.ToAny())
			return nil
		},
	}
}

func newKeysCmd(build func() (*sparkwheel.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every non-root identifier in the built graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := build()
			if err != nil {
				return err
			}
			keys := cfg.Keys()
			sort.Strings(keys)
			for _, k := range keys {
				if k == "" {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
