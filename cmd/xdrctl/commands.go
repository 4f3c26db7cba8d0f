package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/invisible-tech/xdr-responder/internal/commands"
	"github.com/invisible-tech/xdr-responder/internal/config"
	"github.com/invisible-tech/xdr-responder/internal/fetch"
	"github.com/invisible-tech/xdr-responder/internal/poller"
	"github.com/invisible-tech/xdr-responder/internal/state"
	"github.com/invisible-tech/xdr-responder/internal/version"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

// env is what every subcommand needs once flags are parsed.
type env struct {
	cfg    *config.Config
	client *xdr.Client
	log    *logrus.Logger
}

func setup(cmd *cobra.Command) (*env, error) {
	log := logrus.New()
	level, _ := cmd.Flags().GetString("log-level")
	log.SetLevel(config.ParseLogLevel(level))
	log.SetOutput(cmd.ErrOrStderr())

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.NewLoader(path, log).Load()
	if err != nil {
		return nil, err
	}
	if err := config.ResolveCredentials(cmd.Context(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := xdr.NewClient(xdr.Config{
		ServerURL:         cfg.API.ServerURL,
		APIKey:            cfg.API.Key,
		APIKeyID:          cfg.API.KeyID,
		Advanced:          cfg.API.Advanced,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	}, log)
	return &env{cfg: cfg, client: client, log: log}, nil
}

// parseArgs turns key=value pairs into command arguments.
func parseArgs(pairs []string) (commands.Args, error) {
	args := make(commands.Args, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		args[k] = v
	}
	return args, nil
}

// render writes v in the selected format. text prints readable as is.
func render(w io.Writer, format, readable string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		_, err := fmt.Fprintln(w, readable)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func runCommand(cmd *cobra.Command, name string, pairs []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	args, err := parseArgs(pairs)
	if err != nil {
		return err
	}
	res, err := commands.NewRunner(e.client, e.log).Run(cmd.Context(), name, args)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")
	return render(cmd.OutOrStdout(), format, res.Readable, res)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "run <command> [key=value ...]",
		Short:   "Run an integration command",
		Example: "  xdrctl run xdr-isolate-endpoint endpoint_id=f8a2f58846b542579c12090652e79f3d",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, args[0], args[1:])
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify the API URL and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, "test-module", nil)
		},
	}
}

func commandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the available commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("NAME", "DESCRIPTION")
			for _, c := range commands.All() {
				table.Append([]string{c.Name, c.Description})
			}
			return table.Render()
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Run one incident poll cycle against the configured state store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			store, err := state.New(state.Config{
				Backend:  e.cfg.State.Backend,
				Path:     e.cfg.State.Path,
				RedisURL: e.cfg.State.RedisURL,
				RedisKey: e.cfg.State.RedisKey,
			})
			if err != nil {
				return err
			}
			if c, ok := store.(io.Closer); ok {
				defer c.Close()
			}
			p := poller.New(e.cfg.Poller, e.client, store, e.log)
			incidents, err := p.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			mark, err := p.Mark(cmd.Context())
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, inc := range incidents {
				fmt.Fprintf(&b, "%s\t%s\n", inc.Occurred, inc.Name)
			}
			fmt.Fprintf(&b, "%d incident(s), mark %d", len(incidents), mark.Time)
			format, _ := cmd.Flags().GetString("output")
			return render(cmd.OutOrStdout(), format, b.String(), map[string]interface{}{
				"incidents": incidents,
				"last_run":  mark,
			})
		},
	}
}

func remoteDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote-data <incident-id>",
		Short: "Get an incident for mirroring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			lastUpdate, _ := cmd.Flags().GetString("last-update")
			resp, err := fetch.GetRemoteData(cmd.Context(), e.client, fetch.RemoteDataArgs{ID: args[0], LastUpdate: lastUpdate})
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("output")
			if format == "text" && resp.IsEmpty() {
				return render(cmd.OutOrStdout(), format, fmt.Sprintf("Incident %s has not changed", args[0]), nil)
			}
			if format == "text" {
				format = "json"
			}
			return render(cmd.OutOrStdout(), format, "", resp)
		},
	}
	cmd.Flags().String("last-update", "", "Time the local copy was last updated")
	return cmd
}

func mappingFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mapping-fields",
		Short: "Print the incident field mapping scheme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("output")
			if format == "text" {
				format = "yaml"
			}
			return render(cmd.OutOrStdout(), format, "", fetch.MappingFields())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
}
