package main

import (
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/output"
	"github.com/driftscan/driftscan/pkg/models"
)

var inputValidator = validator.New()

// CreateVariantInput is the validated shape of the create-variant
// command's flags, checked before a models.Variant is built from them.
type CreateVariantInput struct {
	PatternID string `validate:"required"`
	Name      string `validate:"required"`
	Reason    string `validate:"required"`
	Scope     string `validate:"required,oneof=global directory file"`
	ScopeVal  string `validate:"required_unless=Scope global"`
}

var createVariantCmd = &cobra.Command{
	Use:   "create-variant <pattern-id>",
	Short: "Record an intentional, sanctioned deviation from a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateVariant,
}

func init() {
	createVariantCmd.Flags().String("name", "", "Short variant name")
	createVariantCmd.Flags().String("reason", "", "Why this deviation is intentional")
	createVariantCmd.Flags().String("scope", "file", "Variant scope: global, directory, or file")
	createVariantCmd.Flags().String("scope-value", "", "Directory or file path the scope applies to (required for directory/file scope)")
	rootCmd.AddCommand(createVariantCmd)
}

func runCreateVariant(cmd *cobra.Command, args []string) error {
	patternID := args[0]
	name, _ := cmd.Flags().GetString("name")
	reason, _ := cmd.Flags().GetString("reason")
	scopeFlag, _ := cmd.Flags().GetString("scope")
	scopeVal, _ := cmd.Flags().GetString("scope-value")

	input := CreateVariantInput{PatternID: patternID, Name: name, Reason: reason, Scope: scopeFlag, ScopeVal: scopeVal}
	if err := inputValidator.Struct(input); err != nil {
		return errkind.InvalidArg("create-variant", err)
	}

	scope, err := parseVariantScope(scopeFlag)
	if err != nil {
		return err
	}

	store, _, err := openProjectStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	v, err := store.CreateVariant(models.Variant{
		PatternID: patternID, Name: name, Reason: reason,
		Scope: scope, ScopeVal: scopeVal,
	})
	if err != nil {
		return err
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.NewTable(
		"Variant created",
		[]string{"ID", "Pattern", "Scope", "Reason"},
		[][]string{{v.ID, v.PatternID, string(v.Scope), v.Reason}},
		nil, v,
	))
}

func parseVariantScope(s string) (models.VariantScope, error) {
	switch s {
	case "global":
		return models.ScopeGlobal, nil
	case "directory":
		return models.ScopeDirectory, nil
	case "file":
		return models.ScopeFile, nil
	default:
		return "", errkind.InvalidArg("create-variant", errUnknownScope(s))
	}
}

type unknownScopeErr string

func (e unknownScopeErr) Error() string { return "unknown variant scope: " + string(e) }
func errUnknownScope(s string) error    { return unknownScopeErr(s) }
