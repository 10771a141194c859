package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MultiDragon/libpuns/internal/cli/credentials"
	"github.com/MultiDragon/libpuns/internal/cli/prompt"
	"github.com/MultiDragon/libpuns/internal/cli/timeutil"
	"github.com/MultiDragon/libpuns/internal/clientdirector"
	"github.com/MultiDragon/libpuns/internal/director"
	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/spf13/cobra"
)

// clientContextName is the sole credentials.Store context this CLI
// uses; libpuns has no notion of multiple saved server contexts yet.
const clientContextName = "default"

var (
	clientAddr  string
	clientLogin string
	clientToken string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to a libpuns server and chat in its default zone",
	RunE:  runClient,
}

func init() {
	clientCmd.Flags().StringVar(&clientAddr, "addr", "localhost:7199", "server address")
	clientCmd.Flags().StringVar(&clientLogin, "login", "", "account login (prompted if omitted)")
	clientCmd.Flags().StringVar(&clientToken, "token", "", "account token (prompted if omitted)")
}

func runClient(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return err
	}

	login := clientLogin
	token := clientToken
	if login == "" {
		loginDefault := ""
		if last, err := store.GetContext(clientContextName); err == nil {
			loginDefault = last.Username
		}
		if loginDefault != "" {
			login, err = prompt.Input("Login", loginDefault)
		} else {
			login, err = prompt.InputRequired("Login")
		}
		if err != nil {
			return err
		}
	}
	if token == "" {
		token, err = prompt.Password("Token")
		if err != nil {
			return err
		}
	}

	reg, err := buildDemoRegistry()
	if err != nil {
		return err
	}

	ready := make(chan *registry.Node, 1)
	d := clientdirector.New(reg, avatarClass, 2*time.Second, func(avatar *registry.Node) {
		ready <- avatar
	})
	d.OnDisconnect(func(reason director.KickReason) {
		fmt.Printf("disconnected: %v\n", reason)
		os.Exit(1)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	connectedAt := time.Now()
	if err := d.Connect(ctx, clientAddr, login, token); err != nil {
		return err
	}
	defer d.Close()

	if err := store.SetContext(clientContextName, &credentials.Context{ServerURL: clientAddr, Username: login}); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not save login context:", err)
	} else if err := store.UseContext(clientContextName); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not save login context:", err)
	}

	var avatar *registry.Node
	select {
	case avatar = <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	name, err := prompt.Input("Display name", "anonymous")
	if err != nil {
		return err
	}
	if name != "" {
		if err := avatar.SendUpdate("setName", []any{name}, registry.SendOptions{}); err != nil {
			return err
		}
	}

	fmt.Println("Connected. Type a message and press enter to broadcast it; Ctrl-C to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := avatar.SendUpdate("setMessage", []any{text}, registry.SendOptions{}); err != nil {
			fmt.Fprintln(os.Stderr, "send failed:", err)
		}
	}

	fmt.Printf("Session lasted %s.\n", timeutil.FormatUptime(time.Since(connectedAt).String()))
	return nil
}
