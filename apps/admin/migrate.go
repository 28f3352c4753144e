package main

import (
	"github.com/orgalumni/alumni/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(cli.db, cli.logger, args[0], args[1:]...)
}
