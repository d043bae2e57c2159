package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"sitepilot/internal/logging"
	"sitepilot/internal/model"
	"sitepilot/internal/prompt"
	"sitepilot/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const reloadChoice = "<reload actions>"

var pageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

// runCmd starts the interactive shell
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pick and perform actions interactively",
	Long: `Opens the browser on the remembered URL (or --domain) and repeatedly
offers the actions known for the current page. Choosing an action performs
it; fill and select actions ask for a value unless one is stored for the
domain. Site files edited while the shell runs are picked up automatically.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if !a.prompt.Interactive() {
		return errors.New("the shell needs a terminal; use exec for scripted runs")
	}

	watcher, err := store.NewWatcher(a.store, logging.For(logger, logging.CategoryStore))
	if err != nil {
		logger.Warn("Site files will not be watched", zap.Error(err))
	} else {
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	out := cmd.OutOrStdout()
	page, err := model.Auto(ctx, a.rt)
	if err != nil {
		return err
	}
	printPage(out, page)

	for ctx.Err() == nil {
		if watcher != nil {
			select {
			case path := <-watcher.Changes():
				logger.Info("Site file changed, reloading", zap.String("path", path))
				if page, err = model.Auto(ctx, a.rt); err != nil {
					return err
				}
			default:
			}
		}
		if err := a.ensure(ctx); err != nil {
			return err
		}

		choice, err := a.prompt.Choose(ctx, page.String(), append(page.ActionNames(a.rt), reloadChoice))
		if errors.Is(err, prompt.ErrCancelled) {
			return nil
		}
		if err != nil {
			return err
		}
		if choice == reloadChoice {
			if page, err = model.Auto(ctx, a.rt); err != nil {
				return err
			}
			printPage(out, page)
			continue
		}

		next, transitioned, err := page.Perform(ctx, a.rt, choice, "")
		if err != nil {
			logger.Error("Action failed", zap.String("action", choice), zap.Error(err))
			continue
		}
		page = next
		if transitioned {
			printPage(out, page)
		}
	}
	return nil
}

func printPage(out io.Writer, page *model.Page) {
	fmt.Fprintln(out, pageStyle.Render(page.String()))
}

// parseStep splits "verb_name=value".
func parseStep(step string) (action, value string) {
	action, value, _ = strings.Cut(step, "=")
	return strings.TrimSpace(action), value
}
