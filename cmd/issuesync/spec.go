package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trailhead-labs/issuesync/internal/lifecycle"
	"github.com/trailhead-labs/issuesync/internal/types"
	"github.com/trailhead-labs/issuesync/internal/ui"
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Inspect and validate lifecycle definitions",
}

var specShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active lifecycle definition",
	RunE: func(_ *cobra.Command, _ []string) error {
		spec, err := loadSpec()
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(specSummary(spec))
			return nil
		}

		fmt.Println(ui.RenderCategory("states"))
		for _, name := range spec.States() {
			def, _ := spec.State(name)
			line := fmt.Sprintf("  %s", ui.RenderState(name))
			if name == spec.Initial() {
				line += ui.RenderMuted(" (initial)")
			}
			if def.Terminal {
				line += ui.RenderMuted(" (terminal)")
			}
			fmt.Println(line)
		}

		fmt.Println(ui.RenderCategory("transitions"))
		for _, tr := range spec.Transitions() {
			line := fmt.Sprintf("  %s -> %s [%s]",
				ui.RenderState(tr.From), ui.RenderState(tr.To), tr.Type)
			if len(tr.Preconditions) > 0 {
				preds := make([]string, len(tr.Preconditions))
				for i, p := range tr.Preconditions {
					preds[i] = string(p)
				}
				line += ui.RenderMuted(" requires " + strings.Join(preds, ", "))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var specValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a lifecycle definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		spec, err := lifecycle.LoadFile(args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"valid":  true,
				"states": len(spec.States()),
			})
			return nil
		}
		fmt.Printf("%s %s: valid (%d states, %d transitions)\n",
			ui.RenderPass(ui.IconPass), args[0], len(spec.States()), len(spec.Transitions()))
		return nil
	},
}

func init() {
	specCmd.AddCommand(specShowCmd)
	specCmd.AddCommand(specValidateCmd)
	rootCmd.AddCommand(specCmd)
}

type transitionSummary struct {
	From          types.LifecycleState `json:"from"`
	To            types.LifecycleState `json:"to"`
	Type          types.TransitionType `json:"type"`
	Preconditions []string             `json:"preconditions,omitempty"`
}

type lifecycleSummary struct {
	Initial     types.LifecycleState   `json:"initial"`
	States      []types.LifecycleState `json:"states"`
	Transitions []transitionSummary    `json:"transitions"`
}

func specSummary(spec *lifecycle.Spec) lifecycleSummary {
	out := lifecycleSummary{
		Initial: spec.Initial(),
		States:  spec.States(),
	}
	for _, tr := range spec.Transitions() {
		ts := transitionSummary{From: tr.From, To: tr.To, Type: tr.Type}
		for _, p := range tr.Preconditions {
			ts.Preconditions = append(ts.Preconditions, string(p))
		}
		out.Transitions = append(out.Transitions, ts)
	}
	return out
}
