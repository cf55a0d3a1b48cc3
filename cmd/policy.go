package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/genericsim/tribectl/internal/model"
	"github.com/genericsim/tribectl/internal/policysync"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show and edit tribe policies",
}

// -- policy show --

var policyShowCmd = &cobra.Command{
	Use:   "show <tribe-id>",
	Short: "Show a tribe's policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateClientConfig(); err != nil {
			return err
		}
		id, err := parseTribeID(args[0])
		if err != nil {
			return err
		}

		st, err := newClient(cfg).GetTribeState(cmd.Context(), id)
		if err != nil {
			return eris.Wrap(err, "policy show")
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, st.Policy)
		}
		fmt.Fprintf(os.Stdout, "Policy for %s (tribe %d)\n\n", st.Name, st.ID)
		formatPolicy(os.Stdout, st.Policy)
		return nil
	},
}

// -- policy set --

var policySetCmd = &cobra.Command{
	Use:   "set <tribe-id> <field=value>...",
	Short: "Edit policy fields and submit them",
	Long: "Loads the tribe's policy, applies each field=value edit to a draft, validates it, " +
		"submits it to the Tribe Service, and reloads the server's copy.",
	Example: "  tribectl policy set 1 foodTaxRate=20 storageDecayRate=0.5\n" +
		"  tribectl policy set 2 sharingPriority=child enableCentralStorage=true --dry-run",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTribeID(args[0])
		if err != nil {
			return err
		}
		edits, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		return runPolicyEdit(cmd, id, edits)
	},
}

// -- policy defaults --

var policyDefaultsCmd = &cobra.Command{
	Use:   "defaults <tribe-id>",
	Short: "Submit the backend default policy for a tribe",
	Long: "Loads the tribe's policy, sets every field to the backend default, and submits " +
		"the result like policy set. Local edits are never kept between commands.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTribeID(args[0])
		if err != nil {
			return err
		}
		return runPolicyEdit(cmd, id, defaultAssignments())
	},
}

func init() {
	policyShowCmd.Flags().Bool("json", false, "print the policy as JSON")
	for _, c := range []*cobra.Command{policySetCmd, policyDefaultsCmd} {
		c.Flags().Bool("dry-run", false, "validate the edits without submitting")
		c.Flags().String("mode", "", "update payload: full or diff (default from config)")
	}

	policyCmd.AddCommand(policyShowCmd, policySetCmd, policyDefaultsCmd)
	rootCmd.AddCommand(policyCmd)
}

// assignment is one field=value argument.
type assignment struct {
	Field string
	Value string
}

// parseAssignments splits field=value arguments. Field names are matched
// case-insensitively against the policy fields.
func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, eris.Errorf("invalid edit %q: expected field=value", a)
		}
		f, found := lookupFieldFold(name)
		if !found {
			return nil, eris.Wrapf(policysync.ErrUnknownField, "field %q", name)
		}
		out = append(out, assignment{Field: f.Name, Value: value})
	}
	return out, nil
}

func lookupFieldFold(name string) (model.Field, bool) {
	for _, f := range model.PolicyFields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return model.Field{}, false
}

// defaultAssignments sets every field to the backend default.
func defaultAssignments() []assignment {
	def := model.DefaultPolicy()
	out := make([]assignment, 0, len(model.PolicyFields))
	for _, f := range model.PolicyFields {
		v, _ := def.Value(f.Name)
		out = append(out, assignment{Field: f.Name, Value: cast.ToString(v)})
	}
	return out
}

func runPolicyEdit(cmd *cobra.Command, id int64, edits []assignment) error {
	if err := validateClientConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	mode, _ := cmd.Flags().GetString("mode")

	var rec policysync.Recorder
	if !dryRun {
		st, err := openJournal(ctx, cfg)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			rec = st
		}
	}

	ctrl, err := newController(cfg, newClient(cfg), rec, mode)
	if err != nil {
		return err
	}
	return applyEdits(ctx, os.Stdout, ctrl, id, edits, dryRun)
}

// applyEdits drives the controller through load, edit, validate, submit and
// reconcile, reporting each step to out.
func applyEdits(ctx context.Context, out io.Writer, ctrl *policysync.Controller, id int64, edits []assignment, dryRun bool) error {
	if err := ctrl.LoadPolicy(ctx, id); err != nil {
		return eris.Wrapf(err, "load policy for tribe %d", id)
	}
	for _, e := range edits {
		if err := ctrl.EditField(e.Field, e.Value); err != nil {
			return err
		}
	}

	snap := ctrl.Snapshot()
	if !snap.PendingChanges {
		fmt.Fprintln(out, "No changes.")
		return nil
	}
	formatChanges(out, *snap.Baseline, snap.Draft, snap.ChangedFields)

	if dryRun {
		if vs := policysync.Validate(snap.Draft); len(vs) > 0 {
			return &policysync.ValidationError{Violations: vs}
		}
		fmt.Fprintln(out, "Dry run: draft is valid, nothing submitted.")
		return nil
	}

	_, err := ctrl.Submit(ctx)
	snap = ctrl.Snapshot()
	var verr *policysync.ValidationError
	switch {
	case errors.As(err, &verr):
		for _, v := range verr.Violations {
			fmt.Fprintf(out, "  %s: %s\n", v.Field, v.Message)
		}
		return err
	case err != nil:
		if snap.Message != "" {
			fmt.Fprintln(out, snap.Message)
		}
		return err
	}
	fmt.Fprintln(out, snap.Message)
	return nil
}

// formatPolicy writes every policy field with its current value.
func formatPolicy(out io.Writer, p model.Policy) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tLABEL\tVALUE")
	_, _ = fmt.Fprintln(w, "-----\t-----\t-----")
	for _, f := range model.PolicyFields {
		value := displayValue(p, f)
		if f.Name == model.FieldCentralStorageTaxRate && !p.EnableCentralStorage {
			value += " (inactive)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Label, value)
	}
	_ = w.Flush()
}

// formatChanges writes the changed fields as before/after pairs.
func formatChanges(out io.Writer, base, draft model.Policy, changed []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tCURRENT\tNEW")
	_, _ = fmt.Fprintln(w, "-----\t-------\t---")
	for _, name := range changed {
		f, _ := model.LookupField(name)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, displayValue(base, f), displayValue(draft, f))
	}
	_ = w.Flush()
}

func displayValue(p model.Policy, f model.Field) string {
	if f.Kind == model.KindEnum {
		return p.SharingPriority.Label()
	}
	v, _ := p.Value(f.Name)
	return cast.ToString(v)
}
