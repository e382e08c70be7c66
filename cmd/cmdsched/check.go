package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cmdsched/internal/directive"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var tz string
	cmd := &cobra.Command{
		Use:   "check <directive-file>",
		Short: "Parse a directive file and report every entry and malformed line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := time.Local
			if strings.TrimSpace(tz) != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return fmt.Errorf("timezone: %w", err)
				}
				loc = l
			}
			entries, lineErrs, err := directive.LoadFile(args[0], loc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			now := time.Now()
			for _, e := range entries {
				note := ""
				if e.Kind == directive.KindOneTime && !e.At.After(now) {
					note = "  (stale)"
				}
				fmt.Fprintf(out, "%-8s %-5s %s%s\n", e.Name(), e.Kind, e.String(), note)
			}
			for _, le := range lineErrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "malformed: %v\n", le)
			}
			if len(lineErrs) > 0 {
				return fmt.Errorf("%d malformed line(s): %w", len(lineErrs), directive.ErrMalformedDirective)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tz, "timezone", "", "IANA zone for one-time directives (default local)")
	return cmd
}

// isMalformed reports whether err came from a malformed directive file.
func isMalformed(err error) bool { return errors.Is(err, directive.ErrMalformedDirective) }
