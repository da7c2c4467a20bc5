// Command seedowner creates the platform OWNER account, or resets its
// password. It uses the same configuration sources as the server.
//
//	seedowner -email owner@example.com [-name "Jane Doe"]
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/benbjohnson/clock"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/flagx"
	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server"
	"github.com/dmitrijs2005/saasgate/internal/server/config"
	"github.com/dmitrijs2005/saasgate/internal/server/ownerseed"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context) error {
	fs := flag.NewFlagSet("seedowner", flag.ContinueOnError)
	email := fs.String("email", "", "owner email")
	name := fs.String("name", "", "owner display name")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-email", "-name"})); err != nil {
		return err
	}

	cfg := config.LoadConfig()
	logger, err := logging.New(cfg.LogBackend, cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	if *email == "" {
		if *email, err = ownerseed.GetSimpleText(reader, "Owner email", os.Stdout); err != nil {
			return err
		}
	}

	pw, err := ownerseed.GetPassword(os.Stdout, "Password")
	if err != nil {
		return err
	}
	confirm, err := ownerseed.GetPassword(os.Stdout, "Repeat password")
	if err != nil {
		common.WipeByteArray(pw)
		return err
	}
	same := bytes.Equal(pw, confirm)
	common.WipeByteArray(confirm)
	if !same {
		common.WipeByteArray(pw)
		return errors.New("passwords do not match")
	}

	clk := clock.New()
	store, db, err := server.OpenStorage(ctx, cfg, logger, clk)
	if db != nil {
		defer db.Close()
	}
	if err != nil {
		common.WipeByteArray(pw)
		return err
	}

	res, err := ownerseed.Seed(ctx, store, clk, *email, *name, pw)
	if err != nil {
		return err
	}
	if res.Created {
		fmt.Printf("created owner %s (%s)\n", res.User.Email, res.User.ID)
	} else {
		fmt.Printf("updated owner %s (%s), %d sessions revoked\n", res.User.Email, res.User.ID, res.Revoked)
	}
	return nil
}
