package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagepilot/pagepilot/internal/interact"
)

// ClickCmd clicks the resolved element.
func ClickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "click",
		Short: "Click an element",
	}
	f := addTargetFlags(cmd)
	f.addCoordsFlag()

	cmd.Run = func(cmd *cobra.Command, args []string) {
		quietLogs()
		req := mustRequest(f)
		runInteraction("click", req, func(ctx context.Context, eng *interact.Engine, req interact.Request) (*interact.ActionResult, error) {
			return eng.Click(ctx, req)
		})
	}
	return cmd
}

// TypeCmd types text into the resolved field.
func TypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type [text]",
		Short: "Type text into a field",
		Args:  cobra.MaximumNArgs(1),
	}
	f := addTargetFlags(cmd)
	f.addCoordsFlag()
	value := cmd.Flags().String("value", "", "text to type (or pass it as the argument)")
	pressEnter := cmd.Flags().Bool("press-enter", false, "press Enter after typing")
	noClear := cmd.Flags().Bool("no-clear", false, "append instead of clearing the field first")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		quietLogs()
		text := *value
		if len(args) > 0 {
			text = args[0]
		}
		if text == "" {
			fmt.Fprintln(os.Stderr, "Error: nothing to type; pass text as the argument or with --value")
			os.Exit(1)
		}
		req := mustRequest(f)
		opts := interact.TypeOptions{ClearFirst: !*noClear, PressEnter: *pressEnter}
		runInteraction("type", req, func(ctx context.Context, eng *interact.Engine, req interact.Request) (*interact.ActionResult, error) {
			return eng.Type(ctx, req, text, opts)
		})
	}
	return cmd
}

// SelectCmd chooses a dropdown option on the resolved select element.
func SelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select [option]",
		Short: "Choose a dropdown option by value or visible label",
		Args:  cobra.MaximumNArgs(1),
	}
	f := addTargetFlags(cmd)
	f.addCoordsFlag()
	value := cmd.Flags().String("value", "", "option to choose (or pass it as the argument)")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		quietLogs()
		option := *value
		if len(args) > 0 {
			option = args[0]
		}
		if option == "" {
			fmt.Fprintln(os.Stderr, "Error: nothing to select; pass the option as the argument or with --value")
			os.Exit(1)
		}
		req := mustRequest(f)
		runInteraction("select", req, func(ctx context.Context, eng *interact.Engine, req interact.Request) (*interact.ActionResult, error) {
			return eng.Select(ctx, req, option)
		})
	}
	return cmd
}

// ToggleCmd drives a checkbox to the desired state.
func ToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Set a checkbox to a desired state",
	}
	f := addTargetFlags(cmd)
	f.addCoordsFlag()
	state := cmd.Flags().String("state", "", "desired state: on or off (required)")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		quietLogs()
		var desired bool
		switch *state {
		case "on":
			desired = true
		case "off":
			desired = false
		default:
			fmt.Fprintln(os.Stderr, "Error: --state must be on or off")
			os.Exit(1)
		}
		req := mustRequest(f)
		runInteraction("toggle", req, func(ctx context.Context, eng *interact.Engine, req interact.Request) (*interact.ActionResult, error) {
			return eng.Toggle(ctx, req, desired)
		})
	}
	return cmd
}

// SubmitCmd submits the form owning the resolved element. With no targeting
// flags at all the page's first form is submitted.
func SubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the form that owns an element",
		Long: `Submit resolves the element, walks to its owning form, and submits it the
way the page expects: requestSubmit when available, falling back to submit().
Use --button when the descriptor names the submit button itself; the button
is then clicked through the normal click pipeline. With no targeting flags
the first form on the page is submitted.`,
	}
	f := addTargetFlags(cmd)
	f.addCoordsFlag()
	button := cmd.Flags().Bool("button", false, "treat the target as the submit button and click it")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		quietLogs()
		req, err := f.request()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts := interact.SubmitOptions{Button: *button}
		runInteraction("submit", req, func(ctx context.Context, eng *interact.Engine, req interact.Request) (*interact.ActionResult, error) {
			return eng.Submit(ctx, req, opts)
		})
	}
	return cmd
}
