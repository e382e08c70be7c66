package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cmdsched",
		Short: "Run shell commands on fixed intervals or at a set time",
		Long: `cmdsched reads a directive file and runs each command either every N
minutes ("*/N cmd") or once at a calendar minute ("min hour day month year cmd").
Output and failures are appended to a shared output log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCheckCmd(), newVersionCmd())
	return root
}
