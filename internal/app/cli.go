package app

import "github.com/spf13/pflag"

// RegisterFlags registers the common CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("base-dir", "b", "", "State directory (index, fingerprints, lock)")
	flags.StringP("sources-dir", "s", "", "Directory of batch files to sync")
	flags.String("category-rules", "", "YAML file with per-category cleanup rules")
	flags.Int64("max-file-size", 0, "Maximum batch file size in bytes")
	flags.Duration("lock-timeout", 0, "How long to wait for a previous run")
	flags.StringP("org", "o", "", "Restrict the run to one organization id")
	flags.IntP("max-results", "n", 0, "Maximum search results")
	flags.Bool("sheets-enabled", false, "Mirror records to the sheet bridge")
	flags.String("sheets-base-url", "", "Sheet bridge base URL")
	flags.String("sheets-token", "", "Sheet bridge bearer token")
	flags.String("webhook-url", "", "Notification webhook URL")
}
