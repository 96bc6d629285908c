package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/class1/graduate/internal/utils"
	"github.com/class1/graduate/pkg/session"
)

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Walks through the timeline of one person, one photo at a time.",
	Long: `Walks through the timeline of one person, reading commands from stdin:

  n        next photo of the current event
  p        previous photo of the current event
  j        next event
  k        previous event
  g <i>    go to event i, counting from 1
  q        quit and remember the position

Without --from, browsing resumes where the previous session for the same person
left off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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
		fromFlag, _ := cmd.Flags().GetString("from")

		ctx := cmd.Context()
		s, err := session.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		log := utils.SubjectLogger(cfg.Subject).WithField("session", s.ID)

		if fromFlag == "" {
			saved, ok, err := e.db.LoadProgress(ctx, cfg.Subject)
			if err != nil {
				log.Warnf("Could not load saved position: %v", err)
			} else if ok {
				log.Debugf("Resuming from %s (session %s)", saved.FromDate, saved.SessionID)
				s.Restore(saved)
			}
		}

		timeout, _ := cmd.Flags().GetDuration("await")
		browseErr := browse(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout(), timeout)

		// save even after ctrl-c
		if err := e.db.SaveProgress(context.WithoutCancel(ctx), s.Progress()); err != nil {
			log.Warnf("Could not save position: %v", err)
		}
		return browseErr
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
	addSessionFlags(browseCmd)
	browseCmd.Flags().Duration("await", 30*time.Second, "How long to wait for a photo that is not loaded yet")
}

type command struct {
	op  byte
	arg int
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{op: 'n'}, nil
	}
	if len(fields[0]) != 1 || !strings.Contains("npjkgq", fields[0]) {
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	c := command{op: fields[0][0]}
	if c.op != 'g' {
		if len(fields) > 1 {
			return command{}, fmt.Errorf("%q takes no argument", fields[0])
		}
		return c, nil
	}
	if len(fields) != 2 {
		return command{}, errors.New("usage: g <event>")
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return command{}, fmt.Errorf("bad event index %q", fields[1])
	}
	c.arg = n
	return c, nil
}

func browse(ctx context.Context, s *session.Session, in io.Reader, out io.Writer, await time.Duration) error {
	if s.Timeline().Len() == 0 {
		fmt.Fprintf(out, "%s does not appear in any photo.\n", s.Subject.Name)
		return nil
	}

	show(ctx, s, out, await)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c, err := parseCommand(sc.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		switch c.op {
		case 'n':
			s.NextExperience()
		case 'p':
			s.PreviousExperience()
		case 'j':
			if !s.NextEvent() {
				fmt.Fprintln(out, "End of the timeline.")
				continue
			}
		case 'k':
			if !s.PreviousEvent() {
				fmt.Fprintln(out, "Already at the first event.")
				continue
			}
		case 'g':
			if err := s.Jump(c.arg - 1); err != nil {
				fmt.Fprintln(out, err)
				continue
			}
		case 'q':
			return nil
		}
		show(ctx, s, out, await)
	}
}

func show(ctx context.Context, s *session.Session, out io.Writer, await time.Duration) {
	v, err := s.Current()
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}
	fmt.Fprintf(out, "[%d/%d] %s\n", v.EventIndex+1, s.Timeline().Len(), v.Event.Description)

	size := len(v.Payload)
	if !v.Loaded {
		actx, cancel := context.WithTimeout(ctx, await)
		p, err := s.AwaitCurrent(actx)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "  photo %d/%d  %s  %s  (not available: %v)\n",
				v.ExperienceIndex+1, len(v.Event.Experiences), v.Experience.ShotAt, v.Experience.Path, err)
			return
		}
		size = len(p)
	}
	local, _ := s.Resolver().LocalPath(v.Experience.Path)
	fmt.Fprintf(out, "  photo %d/%d  %s  %s  (%d bytes)\n",
		v.ExperienceIndex+1, len(v.Event.Experiences), v.Experience.ShotAt, local, size)
}
