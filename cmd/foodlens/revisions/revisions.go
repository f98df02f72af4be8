package revisionscmder

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/foodlens/pkg/prompt"
)

const revisionsLongDesc string = `List the prompt revisions the server can use.

Each revision is an instruction template prepended to the ingredient list.
Its shape says whether the upstream answer is relayed verbatim
(passthrough) or reduced to its "content" field (content).

Select one with "foodlens serve --revision", the FOODLENS_REVISION
environment variable, or "revision" under [prompt] in the config file.`

const revisionsShortDesc string = "List prompt revisions"

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

type revisionsCommander struct {
	instructions bool
}

func NewRevisionsCmd() *cobra.Command {
	cmder := &revisionsCommander{}

	cmd := &cobra.Command{
		Use:   "revisions",
		Short: revisionsShortDesc,
		Long:  revisionsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVarP(&cmder.instructions, "instructions", "i", false, "Print each revision's full instruction text")

	return cmd
}

func (c *revisionsCommander) run(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if c.instructions {
		for _, r := range prompt.All() {
			fmt.Fprintf(out, "%s (%s)\n%s\n\n", r.Name, r.Shape, r.Instruction)
		}
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("REVISION", "SHAPE", "DEFAULT", "SUMMARY").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, r := range prompt.All() {
		def := ""
		if r.Name == prompt.DefaultRevision {
			def = "*"
		}
		t.Row(r.Name, r.Shape.String(), def, r.Summary)
	}

	_, err := fmt.Fprintln(out, t.Render())
	return err
}
