// Command cfpadmin manages accounts directly against the configured store.
// It is how the first admin is created.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/adapters/repository/backend"
	app "github.com/okian/cfpboard/internal/app"
	"github.com/okian/cfpboard/internal/config"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
)

const usage = `usage: cfpadmin <command> [flags]

commands:
  createuser  -email E -name N [-role user|reviewer|admin]   prompts for a password
  setrole     -email E -role user|reviewer|admin
  listusers
  deactivate  -email E

Configuration is read from the CFP_* environment, as for the server.
`

var errUsage = errors.New("usage")

// readPassword prompts on the terminal without echo. Tests replace it.
var readPassword = func(prompt string, in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	_ = logger.SetLevelString("warn")

	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		if len(os.Args) < 2 {
			os.Exit(2)
		}
		return
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cfpadmin:", err)
		os.Exit(1)
	}
	store, err := backend.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cfpadmin:", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(ctx, store, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "cfpadmin:", err)
		os.Exit(1)
	}
}

// run executes one subcommand as the system caller.
func run(ctx context.Context, store repository.Store, args []string, in io.Reader, out io.Writer) error {
	svc := app.New(app.WithStore(store), app.WithLogger(logger.Named("cfpadmin")))
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "createuser":
		fs := newFlagSet(cmd, out)
		email := fs.String("email", "", "account email")
		name := fs.String("name", "", "display name")
		role := fs.String("role", string(user.RoleUser), "user, reviewer or admin")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		r, ok := user.ParseRole(*role)
		if !ok {
			return errors.Errorf("unknown role %q", *role)
		}
		pwd, err := readPassword("Password: ", in, out)
		if err != nil {
			return errors.Wrap(err, "reading password")
		}
		u, err := svc.CreateUser(ctx, app.System, user.NewUserInput{Email: *email, Name: *name, Password: pwd, Role: r})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s %s (%s)\n", u.ID, u.Email, u.Role)

	case "setrole":
		fs := newFlagSet(cmd, out)
		email := fs.String("email", "", "account email")
		role := fs.String("role", "", "user, reviewer or admin")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		id, err := lookup(ctx, store, *email)
		if err != nil {
			return err
		}
		u, err := svc.SetRole(ctx, app.System, id, *role)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", u.Email, u.Role)

	case "deactivate":
		fs := newFlagSet(cmd, out)
		email := fs.String("email", "", "account email")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		id, err := lookup(ctx, store, *email)
		if err != nil {
			return err
		}
		u, err := svc.DeactivateUser(ctx, app.System, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s deactivated\n", u.Email)

	case "listusers":
		fs := newFlagSet(cmd, out)
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		users, err := svc.ListUsers(ctx, app.System)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tACTIVE")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Email, u.Name, u.Role, u.Active)
		}
		return tw.Flush()

	default:
		fmt.Fprint(out, usage)
		return errUsage
	}
	return nil
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func lookup(ctx context.Context, store repository.Store, email string) (string, error) {
	if email == "" {
		return "", errors.New("-email is required")
	}
	u, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", errors.Wrapf(err, "looking up %s", email)
	}
	return u.ID, nil
}
