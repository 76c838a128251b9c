package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"recordpipe/internal/config"
	"recordpipe/internal/validator"
)

func newCheckCmd(g *globals) *cobra.Command {
	var ff fileFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Lint the system and file configuration without touching any input",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			issues := config.ValidateSystem(g.sys)

			f, key, err := ff.resolve(g.sys)
			if err != nil {
				return err
			}
			fileIssues := config.ValidateFile(f)
			issues = append(issues, fileIssues...)

			for _, iss := range issues {
				c := color.New(color.FgYellow)
				if iss.Severity == config.SeverityError {
					c = color.New(color.FgRed)
				}
				fmt.Fprintf(w, "%s %s: %s\n", c.Sprint(iss.Severity), iss.Path, iss.Message)
			}
			if err := config.Err(issues); err != nil {
				return err
			}
			// Building the chain catches validators that are unknown at runtime.
			chain, err := validator.Build(f)
			if err != nil {
				return err
			}
			if _, _, err := collaborators(g.sys, f, key); err != nil {
				return fmt.Errorf("post-run hooks: %w", err)
			}
			fmt.Fprintf(w, "%s %s; validators: %v\n", color.GreenString("ok"), describe(f, key), chain.Names())
			return nil
		},
	}
	ff.register(cmd)
	return cmd
}
