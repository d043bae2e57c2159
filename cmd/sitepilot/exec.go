package main

import (
	"encoding/json"
	"fmt"
	"time"

	"sitepilot/internal/logging"
	"sitepilot/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var execJSON bool

// Actions slower than this are logged as warnings.
const slowAction = 7 * time.Second

// execCmd performs scripted actions
var execCmd = &cobra.Command{
	Use:   "exec [verb_name[=value]...]",
	Short: "Perform actions in order and print the resulting page",
	Long: `Performs each action on whatever page the browser is showing, in order.
Values for fill and select actions may be given after "="; otherwise the
stored secret for the domain is used.

Example:
  sitepilot exec -d example.com/login fill_email=me@example.com fill_password click_sign_in`,
	RunE: runExec,
}

func init() {
	execCmd.Flags().BoolVar(&execJSON, "json", false, "Print the final page as JSON")
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	page, err := model.Auto(ctx, a.rt)
	if err != nil {
		return err
	}
	for _, step := range args {
		action, value := parseStep(step)
		timer := logging.StartTimer(logging.For(logger, logging.CategoryModel), action)
		page, _, err = page.Perform(ctx, a.rt, action, value)
		timer.StopWithThreshold(slowAction)
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		logger.Debug("Performed", zap.String("action", action), zap.Stringer("page", page))
	}

	out := cmd.OutOrStdout()
	if !execJSON {
		printPage(out, page)
		return nil
	}
	text, err := page.Text(ctx, a.rt)
	if err != nil {
		logger.Warn("Unable to read page text", zap.Error(err))
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"page":    page.String(),
		"actions": page.ActionNames(a.rt),
		"text":    text,
	})
}
