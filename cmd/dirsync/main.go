package main

import (
	"context"
	"os"

	"github.com/mygovdir/dirsync/internal/app"
	"github.com/mygovdir/dirsync/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "dirsync"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Government directory sync pipeline",
		Long:    "Aggregates ministry staff-directory batches into a search index and spreadsheet mirror",
		Version: version,
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)
	app.RegisterFlags(rootCmd.PersistentFlags())

	loadCmd := &cobra.Command{
		Use:   "load [batch files...]",
		Short: "Full overwrite: rewrite every document from the given batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunSync(context.Background(), cmd.Flags(), args, pipeline.ModeLoad, version)
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update [batch files...]",
		Short: "Incremental reconcile: apply only detected changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunSync(context.Background(), cmd.Flags(), args, pipeline.ModeUpdate, version)
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the directory search index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunSearch(context.Background(), cmd.Flags(), args[0])
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show last synced fingerprints per source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunStatus(cmd.Flags())
		},
	}

	rootCmd.AddCommand(loadCmd, updateCmd, searchCmd, statusCmd)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}
