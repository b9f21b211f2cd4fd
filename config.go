package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/sleuthbox/effects"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind      string
	endpoints map[string]string
	gameID    string
	playerID  int
	port      int
	prefix    string
	profile   bool
	pushPath  string
	reconnect time.Duration
	reset     string
	server    string
	status    bool
	timeout   time.Duration
	verbose   bool
	version   bool

	resetPolicy effects.ResetPolicy
	endpointMap map[effects.Kind]string
}

func (c *Config) validate() error {
	u, err := url.Parse(c.server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid --server (must be an http or https URL): %q", c.server)
	}
	if c.gameID == "" {
		return errors.New("--game-id is required")
	}
	if c.playerID < 1 {
		return fmt.Errorf("invalid --player-id (must be positive): %d", c.playerID)
	}
	if c.status && (c.port < 1 || c.port > 65535) {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.timeout < 0 || c.reconnect < 0 {
		return errors.New("--timeout and --reconnect-max must not be negative")
	}

	c.resetPolicy, err = effects.ParseResetPolicy(c.reset)
	if err != nil {
		return err
	}

	c.endpointMap = effects.DefaultEndpoints()
	for name, tmpl := range c.endpoints {
		kind, ok := effects.ParseKind(name)
		if !ok {
			return fmt.Errorf("invalid --endpoint: unknown effect %q", name)
		}
		c.endpointMap[kind] = tmpl
	}

	return nil
}

func (c *Config) joinURL() string {
	return strings.TrimRight(c.server, "/") + "/game/" + url.PathEscape(c.gameID)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SLEUTHBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "sleuthbox",
		Short:         "Terminal client that resolves card effects for a running deduction game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return runClient(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "127.0.0.1", "address to bind the status server to (env: SLEUTHBOX_BIND)")
	fs.StringToStringVar(&cfg.endpoints, "endpoint", nil, "override an action endpoint as effect=template, empty template disables (env: SLEUTHBOX_ENDPOINT)")
	fs.StringVarP(&cfg.gameID, "game-id", "g", "", "game to join (env: SLEUTHBOX_GAME_ID)")
	fs.IntVar(&cfg.playerID, "player-id", 0, "id of the player acting from this client (env: SLEUTHBOX_PLAYER_ID)")
	fs.IntVarP(&cfg.port, "port", "p", 8081, "port for the status server (env: SLEUTHBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all status URLs (env: SLEUTHBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers on the status server (env: SLEUTHBOX_PROFILE)")
	fs.StringVar(&cfg.pushPath, "push-path", "/game/:gameId/ws", "push channel path on the game server (env: SLEUTHBOX_PUSH_PATH)")
	fs.DurationVar(&cfg.reconnect, "reconnect-max", 0, "give up reconnecting the push channel after this long, 0 retries forever (env: SLEUTHBOX_RECONNECT_MAX)")
	fs.StringVar(&cfg.reset, "reset", "after", "when a resolved flow is cleared: before or after its request completes (env: SLEUTHBOX_RESET)")
	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:8080", "game server base URL (env: SLEUTHBOX_SERVER)")
	fs.BoolVar(&cfg.status, "status", false, "serve flow status, health and join QR over http (env: SLEUTHBOX_STATUS)")
	fs.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "transport timeout for action requests (env: SLEUTHBOX_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SLEUTHBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SLEUTHBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, v.GetString(f.Name))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sleuthbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
