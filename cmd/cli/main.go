// Command th is a CLI client for the TaskHive service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/taskhive/taskhive/internal/client"
	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/token"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "taskhive")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskhive")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (run 'th auth' first)")
	}
	return tf.AccessToken, nil
}

func saveSubject(sub string) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	return os.WriteFile(filepath.Join(cfgDir(), "subject"), []byte(strings.TrimSpace(sub)), 0o600)
}

func loadSubject() (string, error) {
	b, err := os.ReadFile(filepath.Join(cfgDir(), "subject"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ---- api ----

// api builds an authenticated client plus the owner id all task paths need.
func api(addr string) (*client.Client, string, error) {
	tok, err := loadToken()
	if err != nil {
		return nil, "", err
	}
	owner, err := loadSubject()
	if err != nil || owner == "" {
		return nil, "", errors.New("no subject saved (run 'th auth' first)")
	}
	return client.New(addr, tok), owner, nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `th CLI
Usage:
  th -addr URL <cmd> [args]

Commands:
  version
  auth       -token <jwt> | -subject <id> -key <secret> [-ttl 15m]   (saves token)
  list       [-status all|pending|completed]
  add        -title <text> [-desc <text>]
  show       -id <uuid>
  edit       -id <uuid> [-title <text>] [-desc <text>] [-clear-desc]
  rm         -id <uuid>
  toggle     -id <uuid>
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

type authClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// main dispatches subcommands against the task API.
func main() {
	// global flags
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("th %s (%s)\n", version, buildDate)

	case "auth":
		fs := flag.NewFlagSet("auth", flag.ExitOnError)
		tok := fs.String("token", "", "bearer token issued by your identity provider")
		subject := fs.String("subject", "", "subject to mint a local dev token for")
		key := fs.String("key", "", "HS256 signing key (dev mint)")
		ttl := fs.Duration("ttl", 15*time.Minute, "dev token TTL")
		_ = fs.Parse(flag.Args()[1:])

		switch {
		case *tok != "":
			// parse subject and exp from the JWT without verifying; the
			// server is the one that checks the signature
			var claims authClaims
			_, _ = jwt.ParseWithClaims(*tok, &claims, func(*jwt.Token) (any, error) { return nil, nil },
				jwt.WithoutClaimsValidation(),
			)
			sub := claims.Subject
			if sub == "" {
				sub = claims.UserID
			}
			if sub == "" {
				fmt.Fprintln(os.Stderr, "token carries no subject")
				os.Exit(1)
			}
			exp := time.Now().Add(15 * time.Minute)
			if claims.ExpiresAt != nil {
				exp = claims.ExpiresAt.Time
			}
			if err := saveToken(*tok, exp); err != nil {
				fail(err)
			}
			if err := saveSubject(sub); err != nil {
				fail(err)
			}

		case *subject != "" && *key != "":
			minted, exp, err := token.Issue([]byte(*key), *subject, *ttl)
			if err != nil {
				fail(err)
			}
			if err := saveToken(minted, exp); err != nil {
				fail(err)
			}
			if err := saveSubject(*subject); err != nil {
				fail(err)
			}

		default:
			fmt.Fprintln(os.Stderr, "need -token, or -subject and -key")
			os.Exit(1)
		}
		fmt.Println("ok")

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		status := fs.String("status", "", "filter: all|pending|completed")
		_ = fs.Parse(flag.Args()[1:])

		cli, owner, err := api(*addr)
		if err != nil {
			fail(err)
		}
		tasks, err := cli.List(ctx, owner, model.ParseStatusFilter(*status))
		if err != nil {
			fail(err)
		}
		// condensed rows
		type row struct{ ID, Title, Done, UpdatedAt string }
		rows := []row{}
		for _, t := range tasks {
			rows = append(rows, row{
				ID:        t.ID.String(),
				Title:     t.Title,
				Done:      fmt.Sprint(t.Completed),
				UpdatedAt: t.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		printJSON(rows)

	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		id := fs.String("id", "", "task id (uuid)")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		cli, owner, err := api(*addr)
		if err != nil {
			fail(err)
		}
		task, err := cli.Get(ctx, owner, parseID(*id))
		if err != nil {
			fail(err)
		}
		printJSON(task)

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		title := fs.String("title", "", "task title")
		desc := fs.String("desc", "", "task description")
		_ = fs.Parse(flag.Args()[1:])
		if *title == "" {
			fmt.Fprintln(os.Stderr, "need -title")
			os.Exit(1)
		}

		cli, owner, err := api(*addr)
		if err != nil {
			fail(err)
		}
		draft := model.TaskDraft{Title: *title}
		if *desc != "" {
			draft.Description = desc
		}
		task, err := cli.Create(ctx, owner, draft)
		if err != nil {
			fail(err)
		}
		printJSON(task)

	case "edit":
		fs := flag.NewFlagSet("edit", flag.ExitOnError)
		id := fs.String("id", "", "task id (uuid)")
		title := fs.String("title", "", "new title")
		desc := fs.String("desc", "", "new description")
		clearDesc := fs.Bool("clear-desc", false, "remove the description")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		// only flags the user actually passed become part of the patch
		var patch model.TaskPatch
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "title":
				patch.Title = title
			case "desc":
				patch.Description = desc
			}
		})
		if *clearDesc {
			empty := ""
			patch.Description = &empty
		}
		if patch.Empty() {
			fmt.Fprintln(os.Stderr, "nothing to change (pass -title, -desc or -clear-desc)")
			os.Exit(1)
		}

		cli, owner, err := api(*addr)
		if err != nil {
			fail(err)
		}
		task, err := cli.Update(ctx, owner, parseID(*id), patch)
		if err != nil {
			fail(err)
		}
		printJSON(task)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		id := fs.String("id", "", "task id (uuid)")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		cli, owner, err := api(*addr)
		if err != nil {
			fail(err)
		}
		if err := cli.Delete(ctx, owner, parseID(*id)); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "toggle":
		fs := flag.NewFlagSet("toggle", flag.ExitOnError)
		id := fs.String("id", "", "task id (uuid)")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		cli, owner, err := api(*addr)
		if err != nil {
			fail(err)
		}
		// run through the tracker so the flip follows the same settle
		// path interactive frontends use
		tr := client.NewTracker(cli, owner)
		if err := tr.Refresh(ctx); err != nil {
			fail(err)
		}
		task, err := tr.Toggle(ctx, parseID(*id))
		if err != nil {
			fail(err)
		}
		printJSON(task)

	default:
		usage()
	}
}

// ---- helpers ----

func parseID(s string) u.UUID {
	id, err := u.FromString(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -id (want uuid)")
		os.Exit(1)
	}
	return id
}

func fail(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "api error: status=%d msg=%s\n", apiErr.Status, apiErr.Detail)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
