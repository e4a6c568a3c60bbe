// Command devtoken registers a chat user and prints a bearer credential for
// it, signed with the server's secret. It stands in for the identity
// provider in development.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/config"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
	"golang.org/x/term"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type options struct {
	username     string
	nickname     string
	promptSecret bool
}

func parseOptions(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.StringVar(&o.username, "name", "", "username to register (required)")
	fs.StringVar(&o.nickname, "nick", "", "display nickname")
	fs.BoolVar(&o.promptSecret, "prompt-secret", false, "read the signing secret from the terminal")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-name", "-nick", "-prompt-secret"})); err != nil {
		return o, err
	}
	o.username = strings.TrimSpace(o.username)
	if o.username == "" {
		return o, errors.New("-name is required")
	}
	return o, nil
}

func promptSecret(w io.Writer) ([]byte, error) {
	fmt.Fprint(w, "Signing secret: ")
	secret, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}
	return secret, nil
}

// issue registers (or reuses) the user and returns a signed credential.
func issue(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager, o options, secret []byte, validity time.Duration) (int64, string, error) {
	user, err := rm.Users(db).Upsert(ctx, o.username, o.nickname)
	if err != nil {
		return 0, "", err
	}
	token, err := auth.GenerateToken(user.ID, secret, validity)
	if err != nil {
		return 0, "", err
	}
	return user.ID, token, nil
}

func run(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	o, err := parseOptions(args)
	if err != nil {
		return err
	}

	secret := []byte(cfg.SecretKey)
	if o.promptSecret {
		if secret, err = promptSecret(stderr); err != nil {
			return err
		}
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	id, token, err := issue(ctx, db, rm, o, secret, cfg.AccessTokenValidityDuration)
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "user %q has id %d; credential valid for %s\n", o.username, id, cfg.AccessTokenValidityDuration)
	fmt.Fprintln(stdout, token)
	return nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, config.LoadConfig(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatalf("%v", err)
	}
}
