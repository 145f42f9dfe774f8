package cmds

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/damay/pkg/config"
	"github.com/go-go-golems/damay/pkg/persistence/chatstore"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(a), newConfigShowCommand(a))
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Marshal(*a.settings)
			if err != nil {
				return err
			}
			if a.configUsed != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", a.configUsed)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force, defaults bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file, asking for the main settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configFile
			if path == "" {
				path = config.DefaultConfigFile()
			}
			path, err := homedir.Expand(path)
			if err != nil {
				return errors.Wrapf(err, "expand %s", path)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", path)
			}

			s := *a.settings
			if !defaults {
				if err := configForm(&s).RunWithContext(cmd.Context()); err != nil {
					return errors.Wrap(err, "config form")
				}
			}
			if err := s.Validate(); err != nil {
				return err
			}
			if err := config.WriteFile(path, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "write the current settings without asking")
	return cmd
}

func configForm(s *config.Settings) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Chat endpoint").
				Description("URL the messages are posted to").
				Value(&s.Endpoint).
				Validate(validateEndpoint),
			huh.NewConfirm().
				Title("Send the conversation history with each message?").
				Value(&s.SendHistory),
			huh.NewInput().
				Title("Welcome message").
				Description("Leave empty for the default greeting").
				Value(&s.Welcome),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Chat surface").
				Options(
					huh.NewOption("Detect automatically", config.ModeAuto),
					huh.NewOption("Full-screen UI", config.ModeTUI),
					huh.NewOption("Plain lines", config.ModeLine),
				).
				Value(&s.Mode),
			huh.NewSelect[string]().
				Title("Where to keep the conversation").
				Options(
					huh.NewOption("JSON file", chatstore.BackendFile),
					huh.NewOption("SQLite database", chatstore.BackendSQLite),
					huh.NewOption("Redis", chatstore.BackendRedis),
					huh.NewOption("Memory only (lost on exit)", chatstore.BackendMemory),
				).
				Value(&s.Store.Backend),
		),
	).WithTheme(huh.ThemeCharm())
}

func validateEndpoint(v string) error {
	u, err := url.Parse(strings.TrimSpace(v))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("enter an http or https URL")
	}
	return nil
}
