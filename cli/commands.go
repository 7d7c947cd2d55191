package cli

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Telemetry bool `help:"Show timing telemetry for operations."`
}

type Commands struct {
	Globals

	Check  CheckCmd  `cmd:"" help:"Run the reconciliation pipeline and report the named checks."`
	Export ExportCmd `cmd:"" help:"Run the pipeline and export the output tables as CSV files."`
	Web    WebCmd    `cmd:"" help:"Serve reconciliation results over HTTP."`
}
