package results

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// Fprint writes s as a two-column table.
func Fprint(w io.Writer, s *Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "=== Simulation Results ===")
	if s.Variable != "" {
		fmt.Fprintf(tw, "%s\t%g\n", s.Variable, s.Value)
	}
	fmt.Fprintf(tw, "Tags simulated\t%s of %s\n", humanize.Comma(int64(s.TagsSimulated)), humanize.Comma(int64(s.TagsCreated)))
	fmt.Fprintf(tw, "Rounds per tag\t%.2f\n", s.RoundsPerTag)
	fmt.Fprintf(tw, "Inventory probability\t%.4f\n", s.InventoryProb)
	fmt.Fprintf(tw, "Read TID probability\t%.4f\n", s.ReadTIDProb)
	fmt.Fprintf(tw, "Identification time\t%s\n", humanize.SIWithDigits(s.ReadTIDTime, 3, "s"))
	fmt.Fprintf(tw, "Collisions per tag\t%.2f\n", s.AvgCollisions)
	fmt.Fprintf(tw, "Rounds / slots\t%s / %s\n", humanize.Comma(int64(s.Rounds)), humanize.Comma(int64(s.Slots)))
	fmt.Fprintf(tw, "Empty slots\t%s\n", humanize.Comma(int64(s.EmptySlots)))
	fmt.Fprintf(tw, "Collisions\t%s\n", humanize.Comma(int64(s.Collisions)))
	fmt.Fprintf(tw, "Lost replies\t%s\n", humanize.Comma(int64(s.LostReplies)))
	if s.QAdjustments > 0 {
		fmt.Fprintf(tw, "Q adjustments\t%s (peak Q %d)\n", humanize.Comma(int64(s.QAdjustments)), s.PeakQ)
	}
	fmt.Fprintf(tw, "Events\t%s\n", humanize.Comma(int64(s.NumEvents)))
	fmt.Fprintf(tw, "Model time\t%s\n", humanize.SIWithDigits(s.SimTime, 4, "s"))
	exit := s.ExitReason
	if s.StopMessage != "" {
		exit += " (" + s.StopMessage + ")"
	}
	fmt.Fprintf(tw, "Exit\t%s\n", exit)
	fmt.Fprintf(tw, "Execution time\t%s\n", humanize.SIWithDigits(s.ExecutionTime, 3, "s"))
	return tw.Flush()
}

// FprintSweep writes one row per sweep point.
func FprintSweep(w io.Writer, rows []*Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	variable := "value"
	if len(rows) > 0 && rows[0].Variable != "" {
		variable = rows[0].Variable
	}
	header := []string{variable, "tags", "rounds/tag", "inventory", "read_tid", "id_time", "collisions/tag", "events", "exec"}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, s := range rows {
		fmt.Fprintf(tw, "%g\t%d\t%.2f\t%.4f\t%.4f\t%s\t%.2f\t%s\t%s\t\n",
			s.Value, s.TagsSimulated, s.RoundsPerTag, s.InventoryProb, s.ReadTIDProb,
			humanize.SIWithDigits(s.ReadTIDTime, 3, "s"), s.AvgCollisions,
			humanize.Comma(int64(s.NumEvents)), humanize.SIWithDigits(s.ExecutionTime, 3, "s"))
	}
	return tw.Flush()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
