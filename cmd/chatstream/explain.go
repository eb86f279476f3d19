package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/chatstream/internal/errors"
)

func (a *app) explainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe an error code",
		Long: `Without arguments, list every error code chatstream can report.
With a code, print its explanation and hint.

Examples:
  chatstream explain
  chatstream explain C101`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, code := range errors.GetAllCodes() {
					tmpl, _ := errors.GetTemplate(code)
					fmt.Fprintf(a.stdout, "%s  %-10s %s\n", code, tmpl.Category, tmpl.Message)
				}
				return nil
			}

			code := strings.ToUpper(strings.TrimSpace(args[0]))
			tmpl, ok := errors.GetTemplate(code)
			if !ok {
				return errors.New("C301").
					WithDetail(fmt.Sprintf("Unknown error code %q.", args[0])).
					WithSuggestion("Run \"chatstream explain\" to list the codes.")
			}

			fmt.Fprintf(a.stdout, "%s: %s (%s)\n", code, tmpl.Message, tmpl.Category)
			if tmpl.Detail != "" {
				fmt.Fprintf(a.stdout, "\n%s\n", tmpl.Detail)
			}
			if tmpl.Suggestion != "" {
				fmt.Fprintf(a.stdout, "\nHint: %s\n", tmpl.Suggestion)
			}
			return nil
		},
	}
	return cmd
}
