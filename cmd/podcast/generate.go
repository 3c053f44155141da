package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-podcast/internal/bus"
	"github.com/loqalabs/loqa-podcast/internal/client"
	"github.com/loqalabs/loqa-podcast/internal/config"
	"github.com/loqalabs/loqa-podcast/internal/podcast"
)

type generateOptions struct {
	server     string
	natsURL    string
	form       client.Form
	mode       string
	out        string
	scriptPath string
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{form: client.DefaultForm()}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a podcast script and, when a voice is configured, audio",
		Example: `  podcast generate --topic "Rockets" --name Historian --minutes 3 --out rockets
  podcast generate --mode dialogue --speaker-a Host --speaker-b Guest --topic AI`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", envOr("PODCAST_SERVER", "http://localhost:3000"), "podcastd base URL")
	flags.StringVar(&opts.natsURL, "nats", "", "submit over NATS at this URL instead of HTTP")
	flags.StringVar(&opts.mode, "mode", string(podcast.ModeSolo), "solo or dialogue")
	flags.StringVar(&opts.form.Name, "name", "", "narrator role (solo)")
	flags.StringVar(&opts.form.SpeakerA, "speaker-a", "", "first speaker (dialogue)")
	flags.StringVar(&opts.form.SpeakerB, "speaker-b", "", "second speaker (dialogue)")
	flags.StringVar(&opts.form.Topic, "topic", "", "podcast topic")
	flags.Float64Var(&opts.form.Minutes, "minutes", podcast.DefaultMinutes, "length in minutes (1-60)")
	flags.StringVar(&opts.out, "out", "", "write audio here; the extension is added from the content type when missing")
	flags.StringVar(&opts.scriptPath, "script", "", "write the script to this file instead of stdout")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
	opts.form.Mode = podcast.Mode(strings.ToLower(strings.TrimSpace(opts.mode)))
	if err := opts.form.Validate(); err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "generating about %d words...\n", opts.form.EstimateWords())

	result, err := submit(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if err := writeScript(cmd.OutOrStdout(), opts.scriptPath, result.Script); err != nil {
		return err
	}

	switch {
	case result.HasAudio() && opts.out != "":
		path := opts.out
		if filepath.Ext(path) == "" {
			path += client.ExtensionFor(result.AudioContentType)
		}
		if err := os.WriteFile(path, result.Audio, 0o644); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		fmt.Fprintf(stderr, "wrote %d bytes of audio to %s\n", len(result.Audio), path)
	case result.HasAudio():
		fmt.Fprintf(stderr, "audio available (%d bytes); pass --out to save it\n", len(result.Audio))
	case result.SynthesisError != "":
		fmt.Fprintf(stderr, "warning: audio unavailable: %s\n", result.SynthesisError)
	}
	return nil
}

func submit(ctx context.Context, opts generateOptions) (client.Result, error) {
	if opts.natsURL == "" {
		return client.New(opts.server, nil).Generate(ctx, opts.form)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	conn, err := bus.Connect(ctx, config.BusConfig{Servers: []string{opts.natsURL}, ConnectTimeout: 2000}, "podcast-cli", logger)
	if err != nil {
		return client.Result{}, err
	}
	defer conn.Close()

	resp, err := conn.Generate(ctx, opts.form.Request())
	if err != nil {
		return client.Result{}, err
	}
	return client.FromResponse(resp)
}

func writeScript(stdout io.Writer, path, script string) error {
	if path == "" {
		_, err := fmt.Fprintln(stdout, script)
		return err
	}
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
