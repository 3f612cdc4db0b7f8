package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/deplist/deplist/pkg/engine"
	"github.com/deplist/deplist/pkg/stores"
)

// mergeListOutput is the JSON form of a resolved merge list.
type mergeListOutput struct {
	Targets []string       `json:"targets"`
	Entries []engine.Entry `json:"entries"`
}

func printMergeList(w io.Writer, format string, targets []string, list *engine.DepList) error {
	switch format {
	case "json":
		return writeJSON(w, mergeListOutput{Targets: targets, Entries: list.Entries()})
	case "dot":
		graph, err := list.Graph()
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, graph.ToDOT())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, e := range list.Entries() {
		note := ""
		if e.Synthetic {
			note = "provided by " + e.Metadata.Virtual
		} else if !e.Complete() {
			note = "incomplete"
		}
		fmt.Fprintf(tw, "%d\t%s-%s\t:%s\t::%s\t%s\n", i+1, e.Name, e.Version, e.Slot, e.Repository, note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d package(s)\n", list.Len())
	return nil
}

// printResolutionError writes the resolution context of err followed by
// its message.
func printResolutionError(w io.Writer, err error) {
	var re *engine.ResolutionError
	if errors.As(err, &re) {
		fmt.Fprintf(w, "Resolution failed (%s):\n%s\n", re.Kind, re.Backtrace())
		return
	}
	fmt.Fprintf(w, "Resolution failed: %v\n", err)
}

func printResolutions(w io.Writer, resolutions []*stores.Resolution) error {
	if jsonOutput {
		return writeJSON(w, resolutions)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tENTRIES\tDURATION\tTARGETS")
	for _, r := range resolutions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%v\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.EntryCount, r.Duration, r.Targets)
	}
	return tw.Flush()
}

func printResolution(w io.Writer, r *stores.Resolution) error {
	if jsonOutput {
		return writeJSON(w, r)
	}

	fmt.Fprintf(w, "ID:       %s\n", r.ID)
	fmt.Fprintf(w, "Created:  %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Targets:  %v\n", r.Targets)
	fmt.Fprintf(w, "Status:   %s\n", r.Status)
	fmt.Fprintf(w, "Duration: %s\n", r.Duration)
	if r.Error != nil {
		fmt.Fprintf(w, "Error:    %s\n", *r.Error)
	}
	if len(r.Entries) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range r.Entries {
		note := ""
		if e.Synthetic {
			note = "virtual"
		}
		fmt.Fprintf(tw, "%d\t%s-%s\t:%s\t::%s\t%s\n", e.Position+1, e.Name, e.Version, e.Slot, e.Repository, note)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
