package main

import (
	// Go Internal Packages
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Local Packages
	client "payflow/client"
	config "payflow/config"
	helpers "payflow/helpers"
	models "payflow/models"
	poller "payflow/poller"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	_ "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
)

var (
	app        = kingpin.New("payctl", "Command line client for the payflow API.")
	configPath = app.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	baseURL    = app.Flag("url", "payflow API base URL").Default("http://localhost:8080").Envar("PAYFLOW_URL").String()
	token      = app.Flag("token", "Bearer token of the acting user").Envar("PAYFLOW_TOKEN").Required().String()
	timeout    = app.Flag("timeout", "Per request timeout").Default("10s").Duration()
	verbose    = app.Flag("verbose", "Log every status check").Short('v').Bool()

	depositCmd      = app.Command("deposit", "Create a PIX deposit and wait until it settles.")
	depositAmount   = depositCmd.Flag("amount", "Amount, e.g. 50.00").Required().String()
	depositName     = depositCmd.Flag("name", "Payer name").Required().String()
	depositDocument = depositCmd.Flag("document", "Payer document").String()
	depositEmail    = depositCmd.Flag("email", "Payer email").String()
	depositNoWait   = depositCmd.Flag("no-wait", "Return right after the charge is created").Bool()

	statusCmd = app.Command("status", "Print one transaction.")
	statusRN  = statusCmd.Arg("request-number", "Transaction request number").Required().String()

	balanceCmd = app.Command("balance", "Print the session user.")
)

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("cannot build logger: %v", err)
	}
	return logger
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	_, appKonf, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger := newLogger(*verbose)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(*baseURL, *timeout, client.NewSession(*token))

	switch cmd {
	case depositCmd.FullCommand():
		err = deposit(ctx, api, appKonf.Poller, logger)
	case statusCmd.FullCommand():
		var tx models.Transaction
		if tx, err = api.TransactionStatus(ctx, *statusRN); err == nil {
			helpers.PrintStruct(tx)
		}
	case balanceCmd.FullCommand():
		var u models.User
		if u, err = api.Me(ctx); err == nil {
			helpers.PrintStruct(u)
		}
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", cmd), zap.Error(err))
		os.Exit(1)
	}
}

func deposit(ctx context.Context, api *client.Client, conf config.Poller, logger *zap.Logger) error {
	amount, err := models.ParseAmount(*depositAmount)
	if err != nil {
		return err
	}
	tx, err := api.CreatePixDeposit(ctx, client.DepositParams{
		Amount: amount,
		Client: models.ClientInfo{Name: *depositName, Document: *depositDocument, Email: *depositEmail},
	})
	if err != nil {
		return err
	}
	helpers.PrintStruct(tx)
	if *depositNoWait {
		return nil
	}

	p := poller.New(poller.Config{
		Interval:    conf.Interval,
		MaxWait:     conf.MaxWait,
		TickTimeout: conf.TickTimeout,
	}, api, logger)
	defer p.Close()

	sub := p.Watch(ctx, tx.RequestNumber, func(tx models.Transaction) {
		fmt.Println(helpers.StatusLine(time.Now(), tx))
	})
	<-sub.Done()

	switch sub.State() {
	case poller.StateTerminal:
		last, _ := sub.Result()
		if last.Status != models.StatusPaidOut {
			return fmt.Errorf("deposit %s ended %s", last.RequestNumber, last.Status)
		}
		if u, err := api.Me(context.WithoutCancel(ctx)); err == nil {
			fmt.Printf("balance: %s\n", u.Balance)
		}
		return nil
	case poller.StateTimedOut:
		return fmt.Errorf("deposit %s still pending after %s", tx.RequestNumber, conf.MaxWait)
	}
	return ctx.Err()
}
