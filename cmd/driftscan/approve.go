package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/patternstore"
)

var approveCmd = &cobra.Command{
	Use:   "approve <pattern-id>",
	Short: "Approve a discovered pattern, excluding its locations from future violations",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var ignoreCmd = &cobra.Command{
	Use:   "ignore <pattern-id>",
	Short: "Ignore a discovered or approved pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runIgnore,
}

func init() {
	approveCmd.Flags().String("by", "", "Identity recorded as the approver")
	rootCmd.AddCommand(approveCmd, ignoreCmd)
}

// ApproveInput is the validated shape of the approve command's arguments.
type ApproveInput struct {
	PatternID string `validate:"required"`
	By        string `validate:"required"`
}

func runApprove(cmd *cobra.Command, args []string) error {
	id := args[0]
	by, _ := cmd.Flags().GetString("by")
	if by == "" {
		by = os.Getenv("USER")
	}
	if err := inputValidator.Struct(ApproveInput{PatternID: id, By: by}); err != nil {
		return errkind.InvalidArg("approve", err)
	}

	store, dir, err := openProjectStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Approve(id, by); err != nil {
		return err
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	f.Success("Approved %s (store: %s)", id, dir)
	return nil
}

func runIgnore(cmd *cobra.Command, args []string) error {
	id := args[0]

	store, dir, err := openProjectStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Ignore(id); err != nil {
		return err
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	f.Success("Ignored %s (store: %s)", id, dir)
	return nil
}

// openProjectStore opens the pattern store rooted under the current
// (or --path-flagged) project's .drift directory.
func openProjectStore(cmd *cobra.Command) (patternstore.Store, string, error) {
	root, _ := cmd.Flags().GetString("path")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, "", errkind.InvalidArg("store", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	dir := filepath.Join(driftDir(cmd, absRoot), "patterns")
	s, err := openStore(cfg, dir)
	if err != nil {
		return nil, "", errkind.InternalErr("store", err)
	}
	return s, dir, nil
}
