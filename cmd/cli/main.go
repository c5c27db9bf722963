// Command puffs is a CLI client for the puff-meter service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/arjunvm/puffmeter/internal/client"
	"github.com/arjunvm/puffmeter/internal/model"
	"github.com/arjunvm/puffmeter/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `puffs CLI
Usage:
  puffs -addr URL <cmd> [args]

Commands:
  version
  register  -name <full name> -email <email> -p <password>
  login     -email <email> -p <password>      (saves session)
  logout
  stats                                       (current stock)
  buy       -type chicken|motta|meat [-n <qty>]
  top                                         (leaderboard)
  badges                                      (your achievements)
  watch                                       (follow live stock updates)
`)
	os.Exit(2)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// authed loads the saved session and returns a client carrying its token.
func authed(base string, store session.Store) (*client.Client, *session.Session) {
	sess, err := store.Load()
	if err != nil {
		fail(err)
	}
	return client.New(base, sess.Token), sess
}

// main dispatches subcommands against the HTTP API.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	store := session.NewFileStore(session.DefaultDir())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("puffs %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		name := fs.String("name", "", "full name")
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" || *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -name, -email and -p")
			os.Exit(1)
		}

		u, err := client.New(*addr, "").Register(ctx, *name, *email, *p)
		if err != nil {
			fail(err)
		}
		fmt.Println(u.ID)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -email and -p")
			os.Exit(1)
		}

		tok, u, err := client.New(*addr, "").Login(ctx, *email, *p)
		if err != nil {
			fail(err)
		}
		if err := store.Save(session.Session{
			Token:     tok.AccessToken,
			ExpiresAt: tok.ExpiresAt,
			UserID:    u.ID,
			Email:     u.Email,
		}); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "logout":
		if err := store.Clear(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "stats":
		st, err := client.New(*addr, "").Stats(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(st)

	case "buy":
		fs := flag.NewFlagSet("buy", flag.ExitOnError)
		typ := fs.String("type", "", "puff type (chicken|motta|meat)")
		qty := fs.Int("n", 1, "quantity")
		_ = fs.Parse(flag.Args()[1:])
		if *typ == "" {
			fmt.Fprintln(os.Stderr, "need -type")
			os.Exit(1)
		}

		cli, _ := authed(*addr, store)
		p, err := cli.Purchase(ctx, model.Category(*typ), *qty)
		if err != nil {
			fail(err)
		}
		printJSON(p)

	case "top":
		rows, err := client.New(*addr, "").Leaderboard(ctx)
		if err != nil {
			fail(err)
		}
		for i, r := range rows {
			fmt.Printf("%2d. %-24s %4d (chicken %d / motta %d / meat %d)\n",
				i+1, r.FullName, r.TotalPuffs, r.Chicken, r.Motta, r.Meat)
		}

	case "badges":
		cli, _ := authed(*addr, store)
		achs, err := cli.Achievements(ctx)
		if err != nil {
			fail(err)
		}
		if len(achs) == 0 {
			fmt.Println("no achievements yet")
			break
		}
		for _, a := range achs {
			fmt.Printf("%-20s %s\n", a.Name, a.UnlockedAt.Local().Format(time.RFC3339))
		}

	case "watch":
		// no timeout: stream until interrupted
		err := client.New(*addr, "").WatchStats(context.Background(), func(st model.Stats) {
			fmt.Printf("%s  chicken=%d motta=%d meat=%d\n",
				time.Now().Format("15:04:05"), st.Chicken, st.Motta, st.Meat)
		})
		if err != nil {
			fail(err)
		}

	default:
		usage()
	}
}
