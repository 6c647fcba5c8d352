// Command hogar is a CLI client for the hogar REST API.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "hogar")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "hogar")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveTokens(t tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

func loadTokens() (tokenFile, error) {
	var tf tokenFile
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return tf, errors.New("not logged in")
	}
	if err := json.Unmarshal(b, &tf); err != nil {
		return tf, err
	}
	if tf.AccessToken == "" && tf.RefreshToken == "" {
		return tf, errors.New("not logged in")
	}
	return tf, nil
}

func clearTokens() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// genPhoneKey returns a fresh base64 key for PHONE_ENCRYPTION_KEY.
func genPhoneKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `hogar CLI
Usage:
  hogar [-api URL] <cmd> [args]

Commands:
  version
  gen-phone-key                                   (prints a PHONE_ENCRYPTION_KEY)
  register   -email <e> | -phone <p>  -p <password> -name <display name>
  login      -id <email or phone> -p <password>   (saves tokens)
  refresh
  logout
  me
  households
  lists
  items      -list <uuid> [-limit n] [-cursor c]
  add-item   -list <uuid> -name <name> [-amount n] [-price n] [-category c]
  purchase   -list <uuid> -item <uuid> [-undo]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the API.
func main() {
	api := flag.String("api", envOr("HOGAR_API", "http://localhost:3000"), "API base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := newClient(*api, nil)

	switch cmd {

	case "version":
		fmt.Printf("hogar %s (%s)\n", version, buildDate)

	case "gen-phone-key":
		key, err := genPhoneKey()
		if err != nil {
			fail(err)
		}
		fmt.Println(key)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		email := fs.String("email", "", "email")
		phone := fs.String("phone", "", "phone")
		p := fs.String("p", "", "password")
		name := fs.String("name", "", "display name")
		_ = fs.Parse(args)
		if (*email == "" && *phone == "") || *p == "" || *name == "" {
			fmt.Fprintln(os.Stderr, "need -email or -phone, -p and -name")
			os.Exit(1)
		}
		res, err := c.register(ctx, registerBody{Email: optional(*email), Phone: optional(*phone), Password: *p, DisplayName: *name})
		if err != nil {
			fail(err)
		}
		if err := saveTokens(res.tokens()); err != nil {
			fail(err)
		}
		printJSON(res.User)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		id := fs.String("id", "", "email or phone")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *id == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -id and -p")
			os.Exit(1)
		}
		res, err := c.login(ctx, *id, *p)
		if err != nil {
			fail(err)
		}
		if err := saveTokens(res.tokens()); err != nil {
			fail(err)
		}
		printJSON(res.User)

	case "refresh":
		tf, err := loadTokens()
		if err != nil {
			fail(err)
		}
		next, err := c.refresh(ctx, tf.RefreshToken)
		if err != nil {
			fail(err)
		}
		if err := saveTokens(next); err != nil {
			fail(err)
		}
		fmt.Println("expires", next.ExpiresAt.UTC().Format(time.RFC3339))

	case "logout":
		authed(ctx, c)
		if err := c.call(ctx, "POST", "/auth/logout", nil, nil); err != nil {
			fail(err)
		}
		if err := clearTokens(); err != nil {
			fail(err)
		}

	case "me":
		authed(ctx, c)
		show(c.call(ctx, "GET", "/auth/me", nil, &raw))

	case "households":
		authed(ctx, c)
		show(c.call(ctx, "GET", "/households/me/all", nil, &raw))

	case "lists":
		authed(ctx, c)
		show(c.call(ctx, "GET", "/lists", nil, &raw))

	case "items":
		fs := flag.NewFlagSet("items", flag.ExitOnError)
		list := fs.String("list", "", "list id")
		limit := fs.Int("limit", 0, "page size")
		cursor := fs.String("cursor", "", "next cursor")
		_ = fs.Parse(args)
		if err := requireUUID("list", *list); err != nil {
			fail(err)
		}
		authed(ctx, c)
		show(c.call(ctx, "GET", itemsPath(*list, *limit, *cursor), nil, &raw))

	case "add-item":
		fs := flag.NewFlagSet("add-item", flag.ExitOnError)
		list := fs.String("list", "", "list id")
		name := fs.String("name", "", "item name")
		amount := fs.String("amount", "", "quantity")
		price := fs.String("price", "", "unit price")
		category := fs.String("category", "", "category")
		_ = fs.Parse(args)
		if err := requireUUID("list", *list); err != nil {
			fail(err)
		}
		body, err := newItemBody(*name, *amount, *price, *category)
		if err != nil {
			fail(err)
		}
		authed(ctx, c)
		show(c.call(ctx, "POST", "/lists/"+*list+"/items", body, &raw))

	case "purchase":
		fs := flag.NewFlagSet("purchase", flag.ExitOnError)
		list := fs.String("list", "", "list id")
		item := fs.String("item", "", "item id")
		undo := fs.Bool("undo", false, "mark as not purchased")
		_ = fs.Parse(args)
		if err := requireUUID("list", *list); err != nil {
			fail(err)
		}
		if err := requireUUID("item", *item); err != nil {
			fail(err)
		}
		authed(ctx, c)
		purchased := !*undo
		show(c.call(ctx, "POST", "/lists/"+*list+"/items/"+*item+"/purchase", map[string]bool{"purchased": purchased}, &raw))

	default:
		usage()
	}
}

// raw receives responses that are printed as they come.
var raw json.RawMessage

func show(err error) {
	if err != nil {
		fail(err)
	}
	fmt.Println(pretty(raw))
}

// authed loads tokens into c, refreshing them first when the access token expired.
func authed(ctx context.Context, c *client) {
	tf, err := loadTokens()
	if err != nil {
		fail(err)
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		if tf, err = c.refresh(ctx, tf.RefreshToken); err != nil {
			fail(fmt.Errorf("session expired, login again: %w", err))
		}
		if err := saveTokens(tf); err != nil {
			fail(err)
		}
	}
	c.token = tf.AccessToken
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: status=%d code=%s msg=%s\n", ae.Status, ae.Code, ae.Msg)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
