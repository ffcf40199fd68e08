// Command resolve loads an agent manifest and prints the context documents
// and tool definitions resolved for a prompt.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	dragonscale "github.com/ZanzyTHEbar/dragonscale-rag"
	"github.com/ZanzyTHEbar/dragonscale-rag/internal/logger"
	"github.com/ZanzyTHEbar/dragonscale-rag/internal/manifest"
	"github.com/ZanzyTHEbar/dragonscale-rag/internal/tools"
	"github.com/spf13/cobra"
)

const (
	modeContext = "context"
	modeTools   = "tools"
	modeAll     = "all"
)

type options struct {
	manifestPath string
	prompt       string
	mode         string
	timeout      time.Duration
	logLevel     string
	logJSON      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "resolve",
		Short:         "Resolve dynamic context and tools for a prompt",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.manifestPath, "manifest", "m", "", "Path to the agent manifest (.yaml, .yml or .json)")
	flags.StringVarP(&opts.prompt, "prompt", "p", "", "Prompt to resolve")
	flags.StringVar(&opts.mode, "mode", modeAll, "What to resolve: context, tools or all")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Override the manifest resolve timeout")
	flags.StringVar(&opts.logLevel, "log-level", string(logger.InfoLevel), "Log level: debug, info, warn or error")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Emit logs as JSON")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	switch opts.mode {
	case modeContext, modeTools, modeAll:
	default:
		return fmt.Errorf("unknown mode '%s' (want context, tools or all)", opts.mode)
	}
	level, err := logger.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = level
	logCfg.Output = stderr
	logCfg.JSON = opts.logJSON
	log := logger.New(logCfg)

	m, err := manifest.LoadFile(opts.manifestPath)
	if err != nil {
		return err
	}

	ts := dragonscale.NewToolSet()
	if err := tools.Register(ts); err != nil {
		return err
	}

	if opts.timeout > 0 {
		m.Settings.ResolveTimeout = opts.timeout.String()
	}

	agent, err := manifest.Build(ctx, m, ts, manifest.WithAgentOptions(dragonscale.WithLogger(log)))
	if err != nil {
		return err
	}
	defer agent.Close()

	log.Info("Resolving prompt", "agent", agent.Name(), "mode", opts.mode)

	prompt := dragonscale.Text(opts.prompt)
	res := &dragonscale.Resolution{}
	switch opts.mode {
	case modeContext:
		res.Context, err = agent.ResolveContext(ctx, prompt)
	case modeTools:
		res.Tools, err = agent.ResolveTools(ctx, prompt)
	default:
		res, err = agent.Resolve(ctx, prompt)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
