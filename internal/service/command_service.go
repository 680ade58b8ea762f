// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/identity"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
)

// Command is a recognized chat command.
type Command string

// Commands.
const (
	CommandGreeting Command = "greeting"
	CommandHelp     Command = "help"
	CommandRecord   Command = "record"
	CommandStatus   Command = "status"
	CommandDebug    Command = "debug"
	CommandUnknown  Command = "unknown"
)

var commandWords = map[string]Command{
	"hi":              CommandGreeting,
	"hello":           CommandGreeting,
	"hey":             CommandGreeting,
	"help":            CommandHelp,
	"?":               CommandHelp,
	"record":          CommandRecord,
	"start":           CommandRecord,
	"start recording": CommandRecord,
	"status":          CommandStatus,
	"debug":           CommandDebug,
	"info":            CommandDebug,
}

var (
	mentionPattern = regexp.MustCompile(`(?is)<at\b[^>]*>.*?</at>`)
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
)

// CommandService answers chat messages sent to the bot.
type CommandService struct {
	Lifecycle         *LifecycleService
	SessionRepository domain.SessionRepository
	ChatNotifier      domain.ChatNotifier
	Resolver          *identity.Resolver
	Config            ServiceConfig
}

// NewCommandService creates a new CommandService.
func NewCommandService(
	lifecycle *LifecycleService,
	sessionRepository domain.SessionRepository,
	chatNotifier domain.ChatNotifier,
	config ServiceConfig,
) *CommandService {
	return &CommandService{
		Lifecycle:         lifecycle,
		SessionRepository: sessionRepository,
		ChatNotifier:      chatNotifier,
		Resolver:          identity.NewResolver(),
		Config:            config,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *CommandService) ServiceReady() bool {
	return s.Lifecycle != nil &&
		s.SessionRepository != nil &&
		s.ChatNotifier != nil &&
		s.Resolver != nil
}

// Normalize strips mentions and markup, lower-cases, removes the bot name and
// collapses whitespace. It is applied until the text stops changing, so
// normalizing its own output is a no-op. A pass that changes the text removes
// markup, entities or the bot name, so the input length bounds the passes.
func (s *CommandService) Normalize(text string) string {
	for range len(text) + 1 {
		next := s.normalizeOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (s *CommandService) normalizeOnce(text string) string {
	text = mentionPattern.ReplaceAllString(text, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = unescapeAll(text)
	text = strings.ToLower(text)
	if name := strings.ToLower(strings.TrimSpace(s.Config.botName())); name != "" {
		text = strings.ReplaceAll(text, name, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// unescapeAll decodes entities until none are left. Every decoding step
// shortens the text.
func unescapeAll(text string) string {
	for {
		next := html.UnescapeString(text)
		if next == text {
			return text
		}
		text = next
	}
}

// Parse maps free text to a command.
func (s *CommandService) Parse(text string) Command {
	normalized := strings.TrimPrefix(s.Normalize(text), "/")
	if cmd, ok := commandWords[strings.TrimSpace(normalized)]; ok {
		return cmd
	}
	return CommandUnknown
}

// HandleCommand runs the command in a chat message and replies to it. The
// reply text is returned even when sending it fails.
func (s *CommandService) HandleCommand(ctx context.Context, a *models.Activity) (Command, string, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return CommandUnknown, "", domain.NewUnavailableError("command service not initialized")
	}
	if a == nil {
		return CommandUnknown, "", domain.NewValidationError("activity is required")
	}

	cmd := s.Parse(a.Text)
	ctx = logging.AppendCtx(ctx, slog.String("command", string(cmd)))
	slog.DebugContext(ctx, "chat command received")

	var reply string
	switch cmd {
	case CommandGreeting:
		reply = s.greeting()
	case CommandHelp:
		reply = s.help()
	case CommandRecord:
		reply = s.record(ctx, a)
	case CommandStatus:
		reply = s.status(ctx, a)
	case CommandDebug:
		reply = s.debug(ctx, a)
	default:
		reply = "I didn't catch that. Type **Help** to learn more."
	}

	if a.ServiceURL != "" && a.Conversation.ID != "" {
		if err := s.ChatNotifier.ReplyToActivity(ctx, a.ServiceURL, a.Conversation.ID, a.ID, reply); err != nil {
			slog.WarnContext(ctx, "failed to reply to command", logging.ErrKey, err)
		}
	}
	return cmd, reply, nil
}

func (s *CommandService) greeting() string {
	return fmt.Sprintf("👋 Hello! I'm **%s**. I record meetings in this chat and post the transcript when they end. "+
		"Type **Help** to see what I can do.", s.Config.botName())
}

func (s *CommandService) help() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s Help**\n\n", s.Config.botName())
	b.WriteString("- **record** or **start**: start recording this meeting\n")
	b.WriteString("- **status**: show the recording status of this meeting\n")
	b.WriteString("- **debug** or **info**: show the identifiers I see for this meeting\n")
	b.WriteString("- **help**: show this message\n")
	return b.String()
}

func (s *CommandService) record(ctx context.Context, a *models.Activity) string {
	session, err := s.Lifecycle.HandleStart(ctx, StartRequest{Activity: a, EventType: models.EventTypeManualRecord})
	if err != nil {
		slog.ErrorContext(ctx, "manual record failed", logging.ErrKey, err)
		return "❌ I could not start recording. Please try again."
	}
	if session.Status == models.StatusSkipped {
		return "⚠️ Recording was skipped because the organizer is not allowed to use this bot."
	}
	return fmt.Sprintf("✅ Recording started. I will post the transcript here when the meeting ends.\n\nMeeting ID: `%s`", session.MeetingID)
}

func (s *CommandService) status(ctx context.Context, a *models.Activity) string {
	meetingID, _ := s.Resolver.MeetingID(a)
	session, err := s.SessionRepository.Get(ctx, meetingID)
	if err != nil {
		if domain.IsNotFound(err) {
			return "No session found for this meeting."
		}
		slog.WarnContext(ctx, "failed to load session for status", logging.ErrKey, err)
		return "❌ I could not read the session right now. Please try again."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Status**: `%s`\n\n", session.Status)
	fmt.Fprintf(&b, "- Meeting ID: `%s`\n", session.MeetingID)
	if session.Title != "" {
		fmt.Fprintf(&b, "- Title: %s\n", session.Title)
	}
	if !session.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "- Updated: %s\n", session.UpdatedAt.UTC().Format(time.RFC3339))
	}
	if session.TranscriptLength > 0 {
		fmt.Fprintf(&b, "- Transcript length: %d\n", session.TranscriptLength)
	}
	if session.SkipReason != "" {
		fmt.Fprintf(&b, "- Skip reason: %s\n", session.SkipReason)
	}
	if session.ErrorMessage != "" {
		fmt.Fprintf(&b, "- Error: %s\n", session.ErrorMessage)
	}
	return b.String()
}

func (s *CommandService) debug(ctx context.Context, a *models.Activity) string {
	id := s.Resolver.Resolve(a)
	meetingCandidates, organizerCandidates := s.Resolver.CandidateNames()

	var b strings.Builder
	b.WriteString("**Current Context**\n\n")
	fmt.Fprintf(&b, "- Meeting ID: `%s` (from %s)\n", id.MeetingID, id.MeetingIDSource)
	fmt.Fprintf(&b, "- Organizer ID: `%s` (from %s)\n", id.OrganizerID, orNone(id.OrganizerSource))
	fmt.Fprintf(&b, "- Conversation ID: `%s`\n", a.Conversation.ID)
	fmt.Fprintf(&b, "- Tenant ID: `%s`\n", a.ChannelData.Tenant.ID)
	fmt.Fprintf(&b, "- Service URL: `%s`\n", a.ServiceURL)
	fmt.Fprintf(&b, "- Meeting ID candidates: %s\n", strings.Join(meetingCandidates, ", "))
	fmt.Fprintf(&b, "- Organizer candidates: %s\n", strings.Join(organizerCandidates, ", "))

	session, err := s.SessionRepository.Get(ctx, id.MeetingID)
	switch {
	case err == nil:
		data, _ := json.MarshalIndent(session, "", "  ")
		fmt.Fprintf(&b, "\n**Session**\n\n```json\n%s\n```\n", data)
	case domain.IsNotFound(err):
		b.WriteString("\nNo session found for this meeting.\n")
	default:
		slog.WarnContext(ctx, "failed to load session for debug", logging.ErrKey, err)
		b.WriteString("\nSession lookup failed.\n")
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
