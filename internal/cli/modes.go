package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func newModesCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List batch modes, presets and upscale options",
		RunE: func(cmd *cobra.Command, _ []string) error {
			title := cases.Title(language.English)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(w, "MODE\tNAME\tSTRATEGY\tITEMS\tMULTIPLIER\tDISCOUNT")
			for _, m := range st.catalog.ListModes() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\tx%.1f\t%d%%\n",
					m.Key, m.Name, title.String(string(m.Strategy)), m.Count, m.CostMultiplier, m.DiscountPercent)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "PRESET\tNAME\tCOST\tMODEL")
			for _, p := range st.catalog.Presets {
				model := p.Model
				if model == "" {
					model = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Cost, model)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "UPSCALE\tCOST")
			for _, o := range st.catalog.Upscale.Options {
				fmt.Fprintf(w, "%s\t%d\n", o.Resolution, o.Cost)
			}
			return w.Flush()
		},
	}
}
