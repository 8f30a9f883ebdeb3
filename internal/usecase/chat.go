package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"rag-chat/internal/domain"
	"rag-chat/internal/session"
)

const (
	defaultMaxMessageLen = 2000
	defaultMaxExchanges  = 10
)

type CompletionProvider interface {
	Complete(ctx context.Context, transcript []domain.Turn, opts domain.CompletionOptions) (domain.Completion, error)
}

// TurnRecorder archives completed exchanges and reports how many a session
// already has.
type TurnRecorder interface {
	GetTurnCount(ctx context.Context, sessionID string) (int, error)
	SaveCompletedTurn(ctx context.Context, sessionID, question, answer string, turns int) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatService runs one exchange at a time against a session: it appends the
// user turn, asks the provider for a reply and appends it.
type ChatService struct {
	llm           CompletionProvider
	opts          domain.CompletionOptions
	recorder      TurnRecorder
	systemPrompt  string
	maxMessageLen int
	maxExchanges  int
	logger        *slog.Logger
}

type Option func(*ChatService)

// WithRecorder archives every completed exchange. Archive failures are logged
// and never fail the exchange.
func WithRecorder(r TurnRecorder) Option {
	return func(s *ChatService) {
		s.recorder = r
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(s *ChatService) {
		s.systemPrompt = prompt
	}
}

func WithMaxMessageLength(n int) Option {
	return func(s *ChatService) {
		if n > 0 {
			s.maxMessageLen = n
		}
	}
}

// WithMaxExchanges caps the exchanges Ask accepts per session, counted from
// the posted history and, with a recorder, from the archive.
func WithMaxExchanges(n int) Option {
	return func(s *ChatService) {
		if n > 0 {
			s.maxExchanges = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ChatService) {
		if l != nil {
			s.logger = l
		}
	}
}

type Reply struct {
	Answer    string
	Citations []domain.Citation
}

type AskInput struct {
	Message   string
	SessionID string
	History   []domain.Turn
}

type AskOutput struct {
	Answer    string
	SessionID string
	Citations []domain.Citation
	History   []domain.Turn
}

func NewChatService(llm CompletionProvider, opts domain.CompletionOptions, options ...Option) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completion provider must not be nil")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	s := &ChatService{
		llm:           llm,
		opts:          opts,
		systemPrompt:  DefaultSystemPrompt,
		maxMessageLen: defaultMaxMessageLen,
		maxExchanges:  defaultMaxExchanges,
		logger:        slog.Default(),
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// NewSession starts a session seeded with the configured system prompt.
func (s *ChatService) NewSession() *session.Session {
	return session.New(s.systemPrompt)
}

func (s *ChatService) SystemPrompt() string {
	return s.systemPrompt
}

// Send runs one exchange on sess. A user turn left unanswered by a previous
// failed Send is retracted first. On provider failure the new user turn stays
// in the transcript and no assistant turn is added.
func (s *ChatService) Send(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if sess == nil {
		return Reply{}, newError(ErrorInternal, "nil_session", nil)
	}
	return s.send(ctx, sess, sess.ID(), text, 0)
}

// Ask is the stateless variant used by the web handler: the client holds the
// history and sends it back with every message.
func (s *ChatService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	sess, err := session.Restore(s.systemPrompt, in.History)
	if err != nil {
		return AskOutput{}, newError(ErrorInvalidInput, "invalid_history", err)
	}
	if sess.Exchanges() >= s.maxExchanges {
		return AskOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)

	archived := 0
	if sessionID != "" && s.recorder != nil {
		archived, err = s.recorder.GetTurnCount(ctx, sessionID)
		if err != nil {
			return AskOutput{}, newError(ErrorInternal, "turn_count_error", err)
		}
		if archived >= s.maxExchanges {
			return AskOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
		}
	}
	if sessionID == "" {
		sessionID = newUUID()
	}

	reply, err := s.send(ctx, sess, sessionID, in.Message, archived)
	if err != nil {
		return AskOutput{}, err
	}
	return AskOutput{
		Answer:    reply.Answer,
		SessionID: sessionID,
		Citations: reply.Citations,
		History:   sess.History(),
	}, nil
}

// send runs one exchange. archived is the exchange count already stored for
// the session; the recorded count never drops below it.
func (s *ChatService) send(ctx context.Context, sess *session.Session, sessionID, text string, archived int) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(text) > s.maxMessageLen {
		return Reply{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	if sess.DiscardPending() {
		s.logger.Debug("retracted unanswered user turn", "session_id", sessionID)
	}
	if err := sess.AppendUser(text); err != nil {
		return Reply{}, newError(ErrorInvalidInput, "empty_message", err)
	}

	completion, err := s.llm.Complete(ctx, sess.Transcript(), s.opts)
	if err != nil {
		s.logger.Warn("completion failed", "session_id", sessionID, "err", err)
		if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
			return Reply{}, newError(ErrorRateLimited, "completion_rate_limited", err)
		}
		return Reply{}, newError(ErrorUpstream, "completion_error", err)
	}

	if err := sess.AppendAssistant(completion.Text); err != nil {
		return Reply{}, newError(ErrorInternal, "session_state_error", err)
	}
	s.record(ctx, sessionID, text, completion.Text, max(sess.Exchanges(), archived+1))

	return Reply{Answer: completion.Text, Citations: completion.Citations}, nil
}

func (s *ChatService) record(ctx context.Context, sessionID, question, answer string, turns int) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.SaveCompletedTurn(ctx, sessionID, question, answer, turns); err != nil {
		s.logger.Error("failed to archive turn", "session_id", sessionID, "turns", turns, "err", err)
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
