package main

import (
	"github.com/alecthomas/kong"

	"ledger/internal/cli"
)

var cmd struct {
	Globals

	CreateAdmin CreateAdminCmd `cmd:"" help:"Create the bootstrap admin user if it does not exist."`
	SetStatus   SetStatusCmd   `cmd:"" help:"Block or reactivate a user."`
	SetRole     SetRoleCmd     `cmd:"" help:"Change the role of a user."`
	Migrate     MigrateCmd     `cmd:"" help:"Apply pending SQLite migrations and exit."`
	Events      EventsCmd      `cmd:"" help:"Print ledger change events from the AMQP queue."`
}

func main() {
	cli.LoadEnvFile()

	ctx := kong.Parse(&cmd,
		kong.Name("ledgerctl"),
		kong.Description("Administrative tasks for the expense ledger."),
		kong.UsageOnError(),
		kong.Bind(&cmd.Globals),
	)

	cli.SetupLogger(nil)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
