package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"artyats/internal/analysis"
	"artyats/internal/common"
	"artyats/internal/formatters"
	"artyats/internal/types"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [resume-file] [job-description-file]",
	Short: "Ask follow-up questions about a resume and job description",
	Long: `Start an interactive session. Each question is answered with the resume,
the job description and the recent conversation as context.

Type 'exit' or 'quit', or press Ctrl-D, to end the session.`,
	Args: cobra.ExactArgs(2),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	texts, err := common.NewFileProcessor(a.extractor, logger).ReadDocuments(cmd.Context(), args...)
	if err != nil {
		return err
	}

	session, err := a.sessions.Create(texts[0], texts[1])
	if err != nil {
		return err
	}
	defer func() { _ = a.sessions.Delete(session.ID()) }()

	logger.Debug("Chat session started", "session_id", session.ID())
	return chatLoop(cmd.Context(), session, cmd.InOrStdin(), cmd.OutOrStdout())
}

// asker is the part of a chat session the loop needs.
type asker interface {
	AskFollowUp(ctx context.Context, question string) (types.ChatTurn, error)
}

// chatLoop reads one question per line until EOF, exit or cancellation.
// Failed questions are reported and the loop continues.
func chatLoop(ctx context.Context, session asker, in io.Reader, out io.Writer) error {
	_, _ = fmt.Fprintln(out, "Ask a question about your resume. Type 'exit' to quit.")

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		turn, err := session.AskFollowUp(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_, _ = fmt.Fprintf(out, "Error: %s%s\n", analysis.FailurePrefix, analysis.UserMessage(err))
			continue
		}
		_, _ = fmt.Fprintln(out, formatters.ChatTurn(turn))
	}
}
