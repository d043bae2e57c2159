package main

import (
	"fmt"

	"sitepilot/internal/model"

	"github.com/spf13/cobra"
)

// pagesCmd lists site files
var pagesCmd = &cobra.Command{
	Use:   "pages [domain...]",
	Short: "List the pages stored for each domain",
	RunE:  runPages,
}

// cleanCmd prunes locators and actions that never worked
var cleanCmd = &cobra.Command{
	Use:   "clean domain...",
	Short: "Remove locators and actions that never worked",
	Long: `Force-cleans every page stored for the given domains: locators that never
found their element are removed, and actions none of whose locators ever
worked are dropped. Key-press actions are kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClean,
}

func runPages(cmd *cobra.Command, args []string) error {
	a := openStore()
	domains := args
	if len(domains) == 0 {
		var err error
		if domains, err = a.store.Domains(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, d := range domains {
		pages, err := a.store.List(d)
		if err != nil {
			return err
		}
		for _, p := range pages {
			fmt.Fprintf(out, "%s\t%d actions\n", p, countActions(p))
		}
	}
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	a := openStore()
	out := cmd.OutOrStdout()
	for _, d := range args {
		pages, err := a.store.List(a.settings.Alias(d))
		if err != nil {
			return err
		}
		for _, p := range pages {
			n, err := p.Clean(a.rt, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%d removed\n", p, n)
		}
	}
	return nil
}

func countActions(p *model.Page) int {
	n := 0
	for _, a := range p.Actions {
		if !a.Placeholder() {
			n++
		}
	}
	return n
}
