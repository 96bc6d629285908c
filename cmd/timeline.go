package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/class1/graduate/internal/utils"
	"github.com/class1/graduate/pkg/index"
	"github.com/class1/graduate/pkg/session"
	"github.com/class1/graduate/pkg/timeline"
)

// timelineCmd represents the timeline command
var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Prints the timeline of one person, marking where browsing would start.",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output != "txt" && output != "json" {
			return fmt.Errorf("invalid output format %q, use txt or json", output)
		}
		prefetch, _ := cmd.Flags().GetBool("prefetch")

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.hold(false); err != nil {
			return err
		}

		cfg, err := e.sessionConfig(cmd)
		if err != nil {
			return err
		}
		cfg.NoPrefetch = !prefetch

		s, err := session.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		if prefetch {
			s.Wait()
		}

		if output == "json" {
			doc, err := timelineJSON(s.ID, s.Subject, s.Timeline())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), doc)
			return nil
		}
		utils.Log.WithField("session", s.ID).Debugf("Printing %d events", s.Timeline().Len())
		printTimeline(cmd.OutOrStdout(), s.Subject, s.Timeline(), prefetch)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	addSessionFlags(timelineCmd)
	timelineCmd.Flags().StringP("output", "o", "txt", "Output format. Supported: txt, json")
	timelineCmd.Flags().Bool("prefetch", false, "Load the photos around the starting event and report their state")
}

// printTimeline writes one line per event and one indented line per photo.
// The starting event is marked with '>'.
func printTimeline(w io.Writer, subject index.Subject, tl *timeline.Timeline, withState bool) {
	fmt.Fprintf(w, "Timeline of %s (%d), %d events\n", subject.Name, subject.ID, tl.Len())
	on, _ := tl.Cursor()
	for i, ev := range tl.Events() {
		marker := " "
		if i == on {
			marker = ">"
		}
		fmt.Fprintf(w, "%s %3d  %-19s  %s\n", marker, i, ev.Key(), ev.Description)
		for _, x := range ev.Experiences {
			line := fmt.Sprintf("         %-19s  %s", x.ShotAt, x.Path)
			if withState {
				line += "  [" + x.State().String() + "]"
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}
}

// timelineJSON renders the timeline as a single JSON document.
func timelineJSON(sessionID string, subject index.Subject, tl *timeline.Timeline) (string, error) {
	on, onPhoto := tl.Cursor()

	doc := `{}`
	var err error
	set := func(json, path string, v interface{}) string {
		if err != nil {
			return json
		}
		json, err = sjson.Set(json, path, v)
		return json
	}
	setRaw := func(json, path, raw string) string {
		if err != nil {
			return json
		}
		json, err = sjson.SetRaw(json, path, raw)
		return json
	}

	doc = set(doc, "session", sessionID)
	doc = set(doc, "subject.id", subject.ID)
	doc = set(doc, "subject.name", subject.Name)
	doc = set(doc, "cursor.event", on)
	doc = set(doc, "cursor.experience", onPhoto)
	doc = setRaw(doc, "events", "[]")

	for _, ev := range tl.Events() {
		evDoc := set(`{}`, "description", ev.Description)
		evDoc = set(evDoc, "date", ev.Key().String())
		evDoc = setRaw(evDoc, "experiences", "[]")
		for _, x := range ev.Experiences {
			xDoc := set(`{}`, "path", x.Path)
			xDoc = set(xDoc, "date", x.ShotAt.String())
			xDoc = set(xDoc, "precise", x.ShotAt.IsPrecise())
			xDoc = set(xDoc, "with", x.With)
			xDoc = set(xDoc, "state", x.State().String())
			evDoc = setRaw(evDoc, "experiences.-1", xDoc)
		}
		doc = setRaw(doc, "events.-1", evDoc)
	}
	return doc, err
}
