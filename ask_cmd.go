package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/koeck/voicegpt/internal/assistant"
	"github.com/koeck/voicegpt/internal/stt"
	"github.com/koeck/voicegpt/internal/tts"
	"github.com/koeck/voicegpt/utils"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var (
	askMarkdown bool
	askQuiet    bool

	askCmd = &cobra.Command{
		Use:   "ask [PROMPT]",
		Short: "Ask a single question and print the answer",
		Long: paragraph(fmt.Sprintf("\n%s a single question, print the answer as it streams and read it aloud. "+
			"Without a prompt, it is read from stdin or, when stt.command is set, from the microphone.", keyword("Ask"))),
		Example: paragraph("voicegpt ask what time is it in Tokyo\necho 'tell me a joke' | voicegpt ask\nvoicegpt ask --markdown --tts piper how do I make pancakes"),
		Args:    cobra.ArbitraryArgs,
		RunE:    runAsk,
	}
)

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readPrompt returns the prompt from args, piped stdin, the recognizer or a
// typed line, in that order.
func readPrompt(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if yes, err := stdinIsPipe(); err != nil {
		return "", err
	} else if yes {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read stdin: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	r, err := newRecognizer()
	if err != nil {
		return "", err
	}
	if r != nil {
		fmt.Fprintln(os.Stderr, subtle("Listening…"))
	} else {
		fmt.Fprint(os.Stderr, keyword("> "))
		r = stt.NewLineRecognizer(bufio.NewReader(os.Stdin))
	}
	return stt.Listen(ctx, r) //nolint:wrapcheck
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	prompt, err := readPrompt(ctx, args)
	if err != nil {
		if errors.Is(err, stt.ErrNoSpeech) || errors.Is(err, stt.ErrPermissionDenied) {
			s, _ := assistant.State{}.Apply(assistant.ListenFailed{Err: err})
			return errors.New(s.Notice.String())
		}
		return err
	}
	if prompt == "" {
		return errors.New(assistant.NoticeNoSpeech.String())
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	v := &voice{Speaker: tts.NewSilent(log.Default())}
	if !askQuiet {
		if v, err = newVoice(os.Stderr); err != nil {
			return err
		}
	}
	defer func() {
		if err := v.Close(); err != nil {
			log.Warn("unable to shut down speech", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan assistant.State, 64)
	session, err := newSession(v, client, func(s assistant.State) {
		select {
		case updates <- s:
		case <-runCtx.Done():
		}
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	id := session.Ask(prompt)
	final, err := printResponse(ctx, cmd.OutOrStdout(), updates, id)
	if err != nil {
		return err
	}
	if final.Notice != assistant.NoticeNone {
		log.Error("ask failed", "notice", final.Notice, "error", final.Err)
		return errors.New(final.Notice.String())
	}

	if v.controller != nil {
		if err := v.controller.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("unable to finish speaking: %w", err)
		}
	}
	return nil
}

// printResponse writes the response of request id to w as it arrives, or
// rendered once complete with --markdown, and returns the final state.
func printResponse(ctx context.Context, w io.Writer, updates <-chan assistant.State, id uint64) (assistant.State, error) {
	var printed int
	for {
		select {
		case <-ctx.Done():
			return assistant.State{}, ctx.Err()

		case s := <-updates:
			if s.ID != id {
				continue
			}

			response := s.Response()
			if !askMarkdown && len(response) > printed {
				fmt.Fprint(w, response[printed:])
				printed = len(response)
			}
			if !s.Idle() {
				continue
			}

			if askMarkdown && response != "" {
				out, err := renderMarkdown(response)
				if err != nil {
					return s, err
				}
				fmt.Fprint(w, out)
			} else if response != "" {
				fmt.Fprintln(w)
			}
			return s, nil
		}
	}
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		utils.GlamourStyle(style),
		glamour.WithWordWrap(int(width)), //nolint:gosec
		glamour.WithColorProfile(termenv.EnvColorProfile()),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}

	out, err := r.Render(md)
	if err != nil {
		// fall back to plain text
		log.Debug("unable to render markdown", "error", err)
		return wordwrap.String(md, int(width)) + "\n", nil //nolint:gosec
	}
	return out, nil
}

func init() {
	askCmd.Flags().BoolVar(&askMarkdown, "markdown", false, "render the answer as markdown once it is complete")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "do not read the answer aloud")
}
