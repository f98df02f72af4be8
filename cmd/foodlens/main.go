package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	analyzecmder "github.com/papercomputeco/foodlens/cmd/foodlens/analyze"
	mcpcmder "github.com/papercomputeco/foodlens/cmd/foodlens/mcp"
	mergecmder "github.com/papercomputeco/foodlens/cmd/foodlens/merge"
	revisionscmder "github.com/papercomputeco/foodlens/cmd/foodlens/revisions"
	servecmder "github.com/papercomputeco/foodlens/cmd/foodlens/serve"
	"github.com/papercomputeco/foodlens/pkg/version"
)

const foodlensLongDesc string = `foodlens relays food-label ingredient lists to a hosted language model
and returns its assessment of how harmful the food is.

Run "foodlens serve" to start the HTTP relay, then "foodlens analyze"
to send it an ingredient list from a file, stdin or the command line.`

const foodlensShortDesc string = "Ingredient harmfulness relay"

func newFoodlensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "foodlens",
		Short:         foodlensShortDesc,
		Long:          foodlensLongDesc,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(analyzecmder.NewAnalyzeCmd())
	cmd.AddCommand(revisionscmder.NewRevisionsCmd())
	cmd.AddCommand(mcpcmder.NewMCPCmd())
	cmd.AddCommand(mergecmder.NewMergeCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newFoodlensCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
