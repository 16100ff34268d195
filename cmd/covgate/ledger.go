package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/covgate/coverage"
)

// countFlags maps submission fields to their flag names.
var countFlags = map[string]string{
	"coveredConditionals": "covered-conditionals",
	"coveredStatements":   "covered-statements",
	"coveredMethods":      "covered-methods",
	"conditionals":        "conditionals",
	"statements":          "statements",
	"methods":             "methods",
	"baseBranch":          "base-branch",
	"ref":                 "ref",
}

func addSubmissionFlags(cmd *cobra.Command, withRef bool) {
	f := cmd.Flags()
	f.String("base-branch", "", "branch to compare against when this branch has no history")
	f.Int64("statements", 0, "total statements")
	f.Int64("conditionals", 0, "total conditionals")
	f.Int64("methods", 0, "total methods")
	f.Int64("covered-statements", 0, "covered statements")
	f.Int64("covered-conditionals", 0, "covered conditionals")
	f.Int64("covered-methods", 0, "covered methods")
	if withRef {
		f.String("ref", "", "revision identifier, e.g. a commit hash")
	}
}

// flagLookup treats a flag as sent only when it was set explicitly.
func flagLookup(cmd *cobra.Command) coverage.Lookup {
	return func(name string) (string, bool) {
		fl := cmd.Flags().Lookup(countFlags[name])
		if fl == nil || !fl.Changed {
			return "", false
		}
		return fl.Value.String(), true
	}
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <project> <branch> <test>",
		Short: "Compare counts against the recorded baseline without saving",
		Long: `Evaluate a coverage measurement against the latest snapshot of the branch,
falling back to --base-branch when the branch has no history. Exits non-zero
when coverage dropped.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := coverage.ParseSubmission(keyArgs(args), flagLookup(cmd), false)
			if err != nil {
				return err
			}
			svc, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			v, err := svc.Check(cmd.Context(), sub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Message)
			if !v.Accepted {
				return errRejected
			}
			return nil
		},
	}
	addSubmissionFlags(cmd, false)
	return cmd
}

func newSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <project> <branch> <test>",
		Short: "Record a coverage snapshot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := coverage.ParseSubmission(keyArgs(args), flagLookup(cmd), true)
			if err != nil {
				return err
			}
			svc, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			snap, err := svc.Save(cmd.Context(), sub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), snap.ID)
			return nil
		},
	}
	addSubmissionFlags(cmd, true)
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <project> <branch> <test>",
		Short: "Print every snapshot of a project/branch/test as JSON, oldest first",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			snaps, err := svc.History(cmd.Context(), keyArgs(args))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snaps)
		},
	}
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [project [branch]]",
		Short: "List projects, the branches of a project, or the tests of a branch",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			var names []string
			switch len(args) {
			case 0:
				names, err = svc.Projects(cmd.Context())
			case 1:
				names, err = svc.Branches(cmd.Context(), args[0])
			default:
				names, err = svc.Tests(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}
