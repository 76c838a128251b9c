package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recordpipe/internal/parser"
	"recordpipe/internal/storage"
	"recordpipe/internal/validator"
)

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List registered file types, validators and storage kinds",
		Args:  cobra.NoArgs,
		// The system config is not needed here.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "file types: %s\n", strings.Join(parser.ListKinds(), ", "))
			fmt.Fprintf(w, "validators: %s\n", strings.Join(validator.ListKinds(), ", "))
			fmt.Fprintf(w, "storage:    %s\n", strings.Join(storage.ListKinds(), ", "))
		},
	}
}
