package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const (
	bannerText   = "Chatbot Jurídico iniciado. Digite 'sair' para encerrar."
	promptText   = "Você: "
	goodbyeText  = "Até logo!"
	feedbackText = "Essa resposta foi útil? (sim/não) "
)

var exitCommands = map[string]struct{}{
	"sair": {}, "exit": {}, "quit": {},
}

// maxLineBytes bounds one typed line, pasted statute excerpts included.
const maxLineBytes = 1 << 20

// Session is one interactive conversation over a pair of streams.
type Session struct {
	chat      ports.ChatService
	feedback  ports.FeedbackService
	in        *bufio.Scanner
	out       io.Writer
	sessionID string
	logger    *slog.Logger
}

func NewSession(chat ports.ChatService, feedback ports.FeedbackService, in io.Reader, out io.Writer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Session{
		chat:      chat,
		feedback:  feedback,
		in:        scanner,
		out:       out,
		sessionID: uuid.NewString(),
		logger:    logger,
	}
}

func (s *Session) ID() string { return s.sessionID }

// Run loops until an exit command, end of input or ctx cancellation. Feedback
// failures are logged and do not end the session.
func (s *Session) Run(ctx context.Context) error {
	if _, err := fmt.Fprintln(s.out, bannerText); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		query, ok := s.prompt(promptText)
		if !ok {
			return s.in.Err()
		}
		if _, exit := exitCommands[strings.ToLower(strings.TrimSpace(query))]; exit {
			_, err := fmt.Fprintln(s.out, goodbyeText)
			return err
		}

		reply := s.chat.Ask(query)
		if _, err := fmt.Fprintf(s.out, "Chatbot: %s\n\n", reply); err != nil {
			return err
		}

		raw, ok := s.prompt(feedbackText)
		if !ok {
			return s.in.Err()
		}
		s.recordFeedback(ctx, query, reply, raw)
		if _, err := fmt.Fprintln(s.out); err != nil {
			return err
		}
	}
}

func (s *Session) prompt(text string) (string, bool) {
	fmt.Fprint(s.out, text)
	if !s.in.Scan() {
		return "", false
	}
	return s.in.Text(), true
}

func (s *Session) recordFeedback(ctx context.Context, query, reply, raw string) {
	if strings.TrimSpace(raw) == "" || s.feedback == nil {
		return
	}
	if _, err := s.feedback.Record(ctx, s.sessionID, query, reply, raw); err != nil {
		s.logger.Warn("feedback_record_failed", "session_id", s.sessionID, "error", err)
	}
}
