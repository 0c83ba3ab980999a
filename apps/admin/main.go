package main

import (
	"context"
	"fmt"
	"os"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/user"
	emailsvc "github.com/etudier/etudier/services/email"
	logsvc "github.com/etudier/etudier/services/logger"
	"github.com/etudier/etudier/storage/database"
	sqlxrepos "github.com/etudier/etudier/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stderr, "ADMIN", conf)
	ctx := context.Background()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = db.PingContext(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(os.Stdout, conf, logger), conf),
	}
	err = cli.run(ctx, os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
