package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apiclient "github.com/scripty-dev/starter-api/pkg/api/client"
)

const requestTimeout = 15 * time.Second

// cli carries state shared by every command.
type cli struct {
	apiBase string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "starterctl",
		Short:         "Command line client for the starter API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.apiBase, "api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.profileCmd(),
		c.itemsCmd(),
		c.healthCmd(),
		versionCmd(),
	)
	return root
}

// session loads the saved config and applies the --api override.
func (c *cli) session() (cliConfig, *apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(c.apiBase) != "" {
		cfg.APIBaseURL = c.apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL, apiclient.WithToken(cfg.Token))
	if err != nil {
		return cliConfig{}, nil, err
	}
	return cfg, client, nil
}

func (c *cli) registerCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			cfg, client, err := c.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			session, err := client.Register(ctx, name, email, secret)
			if err != nil {
				return err
			}
			return storeSession(cmd, cfg, client, session, "registered")
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (supply to avoid prompt)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the issued token",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			cfg, client, err := c.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			session, err := client.Login(ctx, email, secret)
			if err != nil {
				return err
			}
			return storeSession(cmd, cfg, client, session, "logged in")
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (supply to avoid prompt)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func storeSession(cmd *cobra.Command, cfg cliConfig, client *apiclient.Client, session apiclient.Session, verb string) error {
	cfg.APIBaseURL = client.BaseURL()
	cfg.Token = session.Token
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s as %s <%s>\n", verb, session.Name, session.Email)
	return nil
}

func (c *cli) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := c.session()
			if err != nil {
				return err
			}
			if cfg.Token == "" {
				return errors.New("not logged in; run starterctl login first")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			user, err := client.Profile(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
}

func (c *cli) itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage inventory items",
	}
	cmd.AddCommand(c.itemsListCmd(), c.itemsGetCmd(), c.itemsCreateCmd(), c.itemsUpdateCmd(), c.itemsDeleteCmd())
	return cmd
}

func (c *cli) itemsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := c.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			items, err := client.ListItems(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tQTY")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\n", it.ID, it.Name, it.Category, it.Price, it.Quantity)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) itemsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := c.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			it, err := client.GetItem(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), it)
		},
	}
}

// itemFlags binds the writable item fields; only flags the user set are sent.
func itemFlags(cmd *cobra.Command) func() apiclient.ItemInput {
	var (
		name, description, category string
		price                       float64
		quantity                    int
	)
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "Item name")
	flags.StringVar(&description, "description", "", "Item description")
	flags.Float64Var(&price, "price", 0, "Unit price")
	flags.IntVar(&quantity, "quantity", 0, "Units in stock")
	flags.StringVar(&category, "category", "", "electronics, clothing, food, books or other")
	return func() apiclient.ItemInput {
		var input apiclient.ItemInput
		if flags.Changed("name") {
			input.Name = &name
		}
		if flags.Changed("description") {
			input.Description = &description
		}
		if flags.Changed("price") {
			input.Price = &price
		}
		if flags.Changed("quantity") {
			input.Quantity = &quantity
		}
		if flags.Changed("category") {
			input.Category = &category
		}
		return input
	}
}

func (c *cli) itemsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an item",
		Args:  cobra.NoArgs,
	}
	input := itemFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		_, client, err := c.session()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		it, err := client.CreateItem(ctx, input())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), it)
	}
	return cmd
}

func (c *cli) itemsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of an item",
		Args:  cobra.ExactArgs(1),
	}
	input := itemFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		_, client, err := c.session()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		it, err := client.UpdateItem(ctx, args[0], input())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), it)
	}
	return cmd
}

func (c *cli) itemsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := c.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := client.DeleteItem(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check API health",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := c.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			health, err := client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", health.Status, health.Message)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the starterctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(buildVersion))
		},
	}
}

// passwordOrPrompt returns flagValue, or reads a password from stdin. A
// terminal gets a no-echo prompt.
func passwordOrPrompt(cmd *cobra.Command, flagValue string) (string, error) {
	if secret := strings.TrimSpace(flagValue); secret != "" {
		return secret, nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("password is required")
	}
	return secret, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
