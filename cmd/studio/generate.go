package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-studio/internal/logging"
	"github.com/jonathan/content-studio/internal/schemas"
	"github.com/jonathan/content-studio/internal/session"
	"github.com/jonathan/content-studio/internal/types"
)

type generateOptions struct {
	file        string
	prompt      string
	contentType string
	language    string
	voiceID     string
	voiceSpeed  float64
	noVoice     bool
	audience    string
	duration    int
	model       string
	quiet       bool
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Start a generation run and follow its progress",
		Long: `Start a generation run and follow its progress stream until the run completes or fails.
Every update is recorded in the local history. Press Ctrl-C to cancel the run.

The request can be given with flags or loaded from a JSON or YAML file with --file;
flags that are set explicitly override values from the file.`,
		Example: `  studio generate --prompt "Explain gravity to a 10 year old" --type video
  studio generate --file request.yaml --language fr`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "Load the request from a JSON or YAML file")
	f.StringVarP(&opts.prompt, "prompt", "p", "", "What to generate")
	f.StringVarP(&opts.contentType, "type", "t", "", "Content type: video, quiz, storybook, flashcards, podcast")
	f.StringVarP(&opts.language, "language", "l", "", "Content language (e.g. en, fr)")
	f.StringVar(&opts.voiceID, "voice", "", "Narration voice id")
	f.Float64Var(&opts.voiceSpeed, "voice-speed", 0, "Narration speed (0.5-2)")
	f.BoolVar(&opts.noVoice, "no-voice", false, "Disable narration")
	f.StringVar(&opts.audience, "audience", "", "Target audience")
	f.IntVar(&opts.duration, "duration", 0, "Target duration in seconds")
	f.StringVar(&opts.model, "model", "", "Generation model")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the final result")
	return cmd
}

// request builds the generation request from the file and the flags that were set
func (o *generateOptions) request(cmd *cobra.Command) (types.GenerationRequest, error) {
	req := types.GenerationRequest{Voice: types.VoiceSettings{Enabled: true}}
	if o.file != "" {
		loaded, err := schemas.LoadGenerationRequest(o.file)
		if err != nil {
			return req, err
		}
		req = *loaded
	}

	changed := cmd.Flags().Changed
	if changed("prompt") {
		req.Prompt = o.prompt
	}
	if changed("type") {
		ct, err := types.ParseContentType(o.contentType)
		if err != nil {
			return req, err
		}
		req.ContentType = ct
	}
	if changed("language") {
		req.Language = o.language
	}
	if changed("voice") {
		req.Voice.VoiceID = o.voiceID
	}
	if changed("voice-speed") {
		req.Voice.Speed = o.voiceSpeed
	}
	if changed("no-voice") {
		req.Voice.Enabled = !o.noVoice
	}
	if changed("audience") {
		req.TargetAudience = o.audience
	}
	if changed("duration") {
		req.TargetDuration = o.duration
	}
	if changed("model") {
		req.Model = o.model
	}
	return req, nil
}

func (a *app) runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	req, err := opts.request(cmd)
	if err != nil {
		return err
	}
	req = a.cfg.ApplyDefaults(req)

	client, err := a.client()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeHistory, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeHistory()

	var (
		mu    sync.Mutex
		final *types.Run
	)
	ctrl := session.NewController(client,
		session.WithRecorder(store),
		session.WithLogger(logging.WithComponent(a.logger, "session")),
		session.WithOnUpdate(func(run types.Run) {
			if !opts.quiet {
				a.printer.PrintProgress(run)
			}
		}),
		session.WithOnDone(func(run types.Run) {
			mu.Lock()
			defer mu.Unlock()
			final = &run
		}),
	)
	defer ctrl.Close()

	handle, err := ctrl.Start(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Started run %s\n", handle.RunID) //nolint:errcheck
	handle.Wait()

	mu.Lock()
	run := final
	mu.Unlock()
	if run == nil {
		return fmt.Errorf("generation cancelled: run %s keeps its last state in history", handle.RunID)
	}

	a.printer.PrintRun(run)
	if run.Status == types.StatusFailed {
		return fmt.Errorf("generation failed: %s", run.Error)
	}
	return nil
}
