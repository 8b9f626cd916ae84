// Command tipzed is a terminal client for the Tipzed API: browse the
// creator catalog, check a mobile-money number, and manage a creator
// session from the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tipzed/go-tipzed/auth"
	"github.com/tipzed/go-tipzed/client"
	"github.com/tipzed/go-tipzed/creators"
	"github.com/tipzed/go-tipzed/internal/config"
	"github.com/tipzed/go-tipzed/momo"
	"github.com/tipzed/go-tipzed/session"
	"github.com/tipzed/go-tipzed/wallets"
)

const usage = `usage: tipzed <command> [args]

commands:
  creators                 list the creator catalog
  creator <slug>           show one creator
  detect <phone>           detect the mobile-money provider for a number
  login <email> <password> log in and cache the profile
  profile                  show the logged-in profile
  wallet                   show the wallet summary
  logout                   log out and clear the session
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("tipzed failed")
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	cfg := config.New()
	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch args[0] {
	case "creators":
		return app.listCreators(ctx)
	case "creator":
		if len(args) < 2 {
			return errors.New("usage: tipzed creator <slug>")
		}
		return app.showCreator(ctx, args[1])
	case "detect":
		if len(args) < 2 {
			return errors.New("usage: tipzed detect <phone>")
		}
		return app.detect(args[1])
	case "login":
		if len(args) < 3 {
			return errors.New("usage: tipzed login <email> <password>")
		}
		displayBanner(cfg.GetAppName())
		return app.login(ctx, args[1], args[2])
	case "profile":
		return app.profile(ctx)
	case "wallet":
		return app.wallet(ctx)
	case "logout":
		return app.logout(ctx)
	default:
		fmt.Print(usage)
		return errors.Errorf("unknown command %q", args[0])
	}
}

type app struct {
	session  *session.Manager
	auth     *auth.Service
	creators *creators.Service
	wallets  *wallets.Service
}

func newApp(cfg config.Config) (*app, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	sess, err := session.NewManager(store, session.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}

	c, err := client.New(client.Config{
		BaseURL:     cfg.GetBaseURL(),
		APIKey:      cfg.GetAPIKey(),
		Timeout:     cfg.GetTimeout(),
		MaxRequests: cfg.GetMaxRequests(),
		RateWindow:  cfg.GetRateWindow(),
	}, sess,
		client.WithLogger(log.Logger),
		client.WithOnSessionExpired(func() {
			log.Warn().Msg("session expired, please log in again")
		}),
	)
	if err != nil {
		return nil, err
	}

	authService, err := auth.NewService(c, sess, auth.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}
	creatorService, err := creators.NewService(c)
	if err != nil {
		return nil, err
	}
	walletService, err := wallets.NewService(c)
	if err != nil {
		return nil, err
	}

	return &app{
		session:  sess,
		auth:     authService,
		creators: creatorService,
		wallets:  walletService,
	}, nil
}

// newStore keeps the session on disk when a secret is configured so
// logins survive across invocations, and falls back to process memory
// otherwise.
func newStore(cfg config.SessionConfig) (session.Store, error) {
	secret := cfg.GetSessionSecret()
	path := cfg.GetSessionFile()
	if secret == "" || path == "" {
		log.Debug().Msg("no session secret configured, session will not persist")
		return session.NewMemoryStore(), nil
	}
	return session.NewFileStore(path, []byte(secret))
}

func (a *app) listCreators(ctx context.Context) error {
	all, err := a.creators.All(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tCATEGORY")
	for _, c := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Slug, c.DisplayName, c.Category)
	}
	return w.Flush()
}

func (a *app) showCreator(ctx context.Context, slug string) error {
	c, err := a.creators.BySlug(ctx, slug)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", c.DisplayName, c.Slug)
	if c.Bio != "" {
		fmt.Println(c.Bio)
	}
	fmt.Printf("wallet: %d\n", c.WalletID)
	return nil
}

func (a *app) detect(phone string) error {
	provider, ok := momo.Detect(phone)
	if !ok {
		fmt.Println("no provider detected")
		return nil
	}
	fmt.Printf("%s (%s)\n", provider.Name, provider.ID)
	return nil
}

func (a *app) login(ctx context.Context, email, password string) error {
	user, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", user.Email)

	if claims, err := a.session.Claims(); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Printf("session valid until %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *app) profile(ctx context.Context) error {
	user, err := a.auth.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s <%s> (%s)\n", user.FirstName, user.LastName, user.Email, user.UserType)
	return nil
}

func (a *app) wallet(ctx context.Context) error {
	wallet, err := a.wallets.Me(ctx, wallets.Page{})
	if err != nil {
		return err
	}
	fmt.Printf("balance: %.2f %s (earned %.2f over %d transactions)\n",
		wallet.Balance, wallet.Currency, wallet.TotalEarnings, wallet.TotalTransactions)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tAMOUNT\tSTATUS\tSUPPORTER")
	for _, txn := range wallet.Transactions {
		supporter := "anonymous"
		if txn.Supporter != nil {
			supporter = txn.Supporter.Name
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", txn.Date.Format("2006-01-02"), txn.Amount, txn.Status, supporter)
	}
	return w.Flush()
}

func (a *app) logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func displayBanner(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
