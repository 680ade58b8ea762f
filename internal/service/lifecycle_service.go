// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/identity"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/backoff"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/utils"
)

// TruncationMarker is appended to transcript previews that were cut.
const TruncationMarker = "\n\n… _(transcript truncated)_"

const (
	defaultHandlerTimeout = 6 * time.Minute
	// statusWriteTimeout bounds a status write made after the pipeline
	// context is done.
	statusWriteTimeout = 10 * time.Second
)

// ErrTranscriptAttemptTimeout means a single transcript lookup ran past its
// own deadline while the pipeline still had time left. Callers retry on it.
var ErrTranscriptAttemptTimeout = errors.New("transcript lookup timed out")

// StartRequest starts tracking a meeting.
type StartRequest struct {
	Activity *models.Activity
	// EventType records which entry point started the meeting. Defaults to
	// a meeting start event.
	EventType string
}

// LifecycleService drives a meeting from start to transcript delivery.
type LifecycleService struct {
	SessionRepository domain.SessionRepository
	DirectoryClient   domain.DirectoryClient
	Transcripts       *TranscriptResolver
	ChatNotifier      domain.ChatNotifier
	// BlobStore is optional. Transcripts are not archived when it is nil.
	BlobStore domain.TranscriptBlobStore
	// EventSender is optional.
	EventSender domain.SessionEventSender
	Resolver    *identity.Resolver
	Config      ServiceConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	sessionRepository domain.SessionRepository,
	directoryClient domain.DirectoryClient,
	transcripts *TranscriptResolver,
	chatNotifier domain.ChatNotifier,
	blobStore domain.TranscriptBlobStore,
	eventSender domain.SessionEventSender,
	config ServiceConfig,
) *LifecycleService {
	return &LifecycleService{
		SessionRepository: sessionRepository,
		DirectoryClient:   directoryClient,
		Transcripts:       transcripts,
		ChatNotifier:      chatNotifier,
		BlobStore:         blobStore,
		EventSender:       eventSender,
		Resolver:          identity.NewResolver(),
		Config:            config,
		sleep:             sleepContext,
		now:               time.Now,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *LifecycleService) ServiceReady() bool {
	return s.SessionRepository != nil &&
		s.Transcripts != nil &&
		s.ChatNotifier != nil &&
		s.Resolver != nil
}

// HandleStart persists an active session, applies the organizer allow-list
// and announces the recording in the meeting chat.
func (s *LifecycleService) HandleStart(ctx context.Context, req StartRequest) (*models.Session, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("lifecycle service not initialized")
	}
	a := req.Activity
	if a == nil {
		return nil, domain.NewValidationError("activity is required")
	}
	eventType := req.EventType
	if eventType == "" {
		eventType = models.EventTypeMeetingStart
	}

	id := s.Resolver.Resolve(a)
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", id.MeetingID))
	ctx = logging.AppendCtx(ctx, slog.String("event_type", eventType))

	session := &models.Session{
		MeetingID:      id.MeetingID,
		Status:         models.StatusActive,
		JoinURL:        a.JoinURL(),
		Title:          a.MeetingValue().Title,
		OrganizerID:    id.OrganizerID,
		ServiceURL:     a.ServiceURL,
		ConversationID: a.Conversation.ID,
		FromID:         a.From.ID,
		EventType:      eventType,
	}
	if err := s.SessionRepository.Save(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to save session", logging.ErrKey, err)
		return nil, err
	}
	slog.InfoContext(ctx, "meeting session started",
		"meeting_id_source", id.MeetingIDSource,
		"organizer_source", id.OrganizerSource,
	)

	if !s.organizerAllowed(ctx, id.OrganizerID) {
		fields := models.SessionFields{SkipReason: utils.Ptr(models.SkipReasonOrganizerNotInGroup)}
		if err := s.transition(ctx, session, models.StatusSkipped, fields); err != nil {
			return nil, err
		}
		return session, nil
	}

	s.notify(ctx, session, s.recordingNotice())
	s.publish(ctx, session)
	return session, nil
}

// organizerAllowed fails open: a missing organizer or a directory error lets
// the meeting through.
func (s *LifecycleService) organizerAllowed(ctx context.Context, organizerID string) bool {
	groupID := s.Config.AllowedGroupID
	if groupID == "" {
		return true
	}
	if organizerID == "" {
		slog.WarnContext(ctx, "no organizer resolved, skipping group check", "group_id", groupID)
		return true
	}
	if s.DirectoryClient == nil {
		slog.WarnContext(ctx, "directory client not configured, skipping group check", "group_id", groupID)
		return true
	}

	member, err := s.DirectoryClient.IsUserInGroup(ctx, organizerID, groupID)
	if err != nil {
		slog.WarnContext(ctx, "group membership check failed, allowing meeting",
			"organizer_id", organizerID,
			"group_id", groupID,
			logging.ErrKey, err,
		)
		return true
	}
	if !member {
		slog.InfoContext(ctx, "organizer is not in the allowed group",
			"organizer_id", organizerID,
			"group_id", groupID,
		)
	}
	return member
}

// HandleEnd marks the meeting ended, then waits for the transcript and
// delivers it. Only an active or bot_installed session is ended; any other
// stored session is returned unchanged. The wait runs detached from ctx
// cancellation and is bounded by the configured handler timeout. Failures
// after the session is ended are recorded on the session and not returned.
func (s *LifecycleService) HandleEnd(ctx context.Context, a *models.Activity) (*models.Session, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("lifecycle service not initialized")
	}
	if a == nil {
		return nil, domain.NewValidationError("activity is required")
	}

	id := s.Resolver.Resolve(a)
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", id.MeetingID))
	ctx = logging.AppendCtx(ctx, slog.String("event_type", models.EventTypeMeetingEnd))

	stored, err := s.SessionRepository.Get(ctx, id.MeetingID)
	if err != nil {
		if !domain.IsNotFound(err) {
			slog.ErrorContext(ctx, "failed to load session", logging.ErrKey, err)
			return nil, err
		}
		stored = nil
	}

	fromEvent := &models.Session{
		MeetingID:      id.MeetingID,
		JoinURL:        a.JoinURL(),
		Title:          a.MeetingValue().Title,
		OrganizerID:    id.OrganizerID,
		ServiceURL:     a.ServiceURL,
		ConversationID: a.Conversation.ID,
		FromID:         a.From.ID,
	}
	if stored == nil && fromEvent.JoinURL == "" {
		slog.WarnContext(ctx, "meeting end without a stored session or join url, ignoring")
		return nil, nil
	}
	if stored != nil && !stored.Status.CanEnd() {
		if stored.Status == models.StatusSkipped {
			slog.InfoContext(ctx, "meeting was skipped, not collecting a transcript", "skip_reason", stored.SkipReason)
		} else {
			slog.InfoContext(ctx, "meeting already ended, ignoring repeated end", "status", stored.Status)
		}
		return stored, nil
	}

	session := effectiveSession(stored, fromEvent)
	if session.OrganizerID == "" && !identity.IsPlaceholder(a.From.AADObjectID) {
		session.OrganizerID = strings.TrimSpace(a.From.AADObjectID)
	}

	if stored != nil {
		fields := models.SessionFields{
			EventType:      utils.Ptr(models.EventTypeMeetingEnd),
			JoinURL:        &session.JoinURL,
			Title:          &session.Title,
			OrganizerID:    &session.OrganizerID,
			ServiceURL:     &session.ServiceURL,
			ConversationID: &session.ConversationID,
		}
		if err := s.transition(ctx, session, models.StatusEnded, fields); err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeValidation {
				slog.InfoContext(ctx, "meeting end ignored", "status", stored.Status, logging.ErrKey, err)
				return stored, nil
			}
			return nil, err
		}
	} else {
		session.Status = models.StatusEnded
		if err := s.saveDetached(ctx, session); err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeValidation {
				slog.InfoContext(ctx, "meeting end ignored, session recorded concurrently", logging.ErrKey, err)
				return nil, nil
			}
			slog.ErrorContext(ctx, "failed to save ad-hoc session", logging.ErrKey, err)
			return nil, err
		}
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.handlerTimeout())
	defer cancel()
	s.collectTranscript(runCtx, session)

	return session, nil
}

// effectiveSession prefers stored values and fills gaps from the event.
func effectiveSession(stored, event *models.Session) *models.Session {
	if stored == nil {
		session := *event
		session.EventType = models.EventTypeMeetingEnd
		return &session
	}

	session := *stored
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&session.JoinURL, event.JoinURL)
	fill(&session.Title, event.Title)
	fill(&session.OrganizerID, event.OrganizerID)
	fill(&session.ServiceURL, event.ServiceURL)
	fill(&session.ConversationID, event.ConversationID)
	fill(&session.FromID, event.FromID)
	session.EventType = models.EventTypeMeetingEnd
	return &session
}

func (s *LifecycleService) handlerTimeout() time.Duration {
	if s.Config.HandlerTimeout > 0 {
		return s.Config.HandlerTimeout
	}
	return defaultHandlerTimeout
}

func (s *LifecycleService) collectTranscript(ctx context.Context, session *models.Session) {
	if err := s.sleep(ctx, s.Config.TranscriptInitialDelay); err != nil {
		s.fail(ctx, session, fmt.Errorf("waiting for transcript: %w", err))
		return
	}

	transcript, err := backoff.Do(ctx, s.Config.TranscriptRetry, "resolve transcript",
		func(ctx context.Context) (*models.Transcript, error) {
			return s.resolveAttempt(ctx, session)
		},
	)

	switch {
	case err == nil && transcript != nil:
		s.deliverTranscript(ctx, session, transcript)
	case err == nil,
		errors.Is(err, ErrOnlineMeetingNotFound),
		backoff.IsExhausted(err) && errors.Is(err, ErrTranscriptNotReady):
		slog.InfoContext(ctx, "no transcript available for meeting", logging.ErrKey, err)
		_ = s.transition(ctx, session, models.StatusCompletedNoTranscript, models.SessionFields{})
	default:
		s.fail(ctx, session, err)
	}
}

// resolveAttempt runs one transcript lookup bounded by the attempt timeout.
func (s *LifecycleService) resolveAttempt(ctx context.Context, session *models.Session) (*models.Transcript, error) {
	timeout := s.Config.TranscriptAttemptTimeout
	if timeout <= 0 {
		return s.Transcripts.Resolve(ctx, session.JoinURL, session.OrganizerID)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	transcript, err := s.Transcripts.Resolve(attemptCtx, session.JoinURL, session.OrganizerID)
	if err != nil && ctx.Err() == nil && attemptCtx.Err() != nil {
		return nil, fmt.Errorf("%w after %s", ErrTranscriptAttemptTimeout, timeout)
	}
	return transcript, err
}

func (s *LifecycleService) deliverTranscript(ctx context.Context, session *models.Session, transcript *models.Transcript) {
	length := utf8.RuneCount(transcript.Content)
	if err := s.transition(ctx, session, models.StatusTranscriptFetched, models.SessionFields{
		TranscriptLength: &length,
		TranscriptID:     &transcript.ID,
	}); err != nil {
		s.fail(ctx, session, err)
		return
	}

	if s.BlobStore != nil {
		key := BlobKey(s.now(), session.MeetingID)
		metadata := map[string]string{
			"meeting_id":    session.MeetingID,
			"title":         session.Title,
			"organizer_id":  session.OrganizerID,
			"transcript_id": transcript.ID,
		}
		if err := s.BlobStore.Put(ctx, key, transcript.Content, transcript.Format, metadata); err != nil {
			slog.WarnContext(ctx, "failed to store transcript", "blob_key", key, logging.ErrKey, err)
		} else {
			_ = s.transition(ctx, session, models.StatusTranscriptStored, models.SessionFields{BlobKey: &key})
		}
	}

	if !session.CanDeliver() {
		slog.WarnContext(ctx, "no chat to deliver the transcript to")
		_ = s.transition(ctx, session, models.StatusTranscriptFetchedNoDelivery, models.SessionFields{})
		return
	}

	text := TranscriptMessage(session.Title, string(transcript.Content))
	if err := s.ChatNotifier.SendMessage(ctx, session.ServiceURL, session.ConversationID, text); err != nil {
		slog.WarnContext(ctx, "failed to post transcript, keeping last stage", "status", session.Status, logging.ErrKey, err)
		return
	}
	_ = s.transition(ctx, session, models.StatusCompleted, models.SessionFields{})
}

// HandleBotInstalled records the chat the bot was added to and says hello.
// Membership changes that do not add the bot are ignored.
func (s *LifecycleService) HandleBotInstalled(ctx context.Context, a *models.Activity) (*models.Session, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("lifecycle service not initialized")
	}
	if a == nil || !a.BotAdded(s.Config.BotAppID) {
		return nil, nil
	}

	id := s.Resolver.Resolve(a)
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", id.MeetingID))
	ctx = logging.AppendCtx(ctx, slog.String("event_type", models.EventTypeBotInstalled))

	session, err := s.SessionRepository.Get(ctx, id.MeetingID)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "session already exists, keeping it", "status", session.Status)
	case domain.IsNotFound(err):
		session = &models.Session{
			MeetingID:      id.MeetingID,
			Status:         models.StatusBotInstalled,
			JoinURL:        a.JoinURL(),
			OrganizerID:    id.OrganizerID,
			ServiceURL:     a.ServiceURL,
			ConversationID: a.Conversation.ID,
			FromID:         a.From.ID,
			EventType:      models.EventTypeBotInstalled,
		}
		if err := s.SessionRepository.Save(ctx, session); err != nil {
			slog.WarnContext(ctx, "failed to save installed session", logging.ErrKey, err)
		} else {
			s.publish(ctx, session)
		}
	default:
		slog.WarnContext(ctx, "failed to load session", logging.ErrKey, err)
		session = &models.Session{
			MeetingID:      id.MeetingID,
			ServiceURL:     a.ServiceURL,
			ConversationID: a.Conversation.ID,
		}
	}

	target := &models.Session{ServiceURL: a.ServiceURL, ConversationID: a.Conversation.ID}
	s.notify(ctx, target, s.welcomeMessage())
	return session, nil
}

// writeContext returns a context for a session write that is not cancelled
// with ctx and is bounded by statusWriteTimeout.
func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
}

func (s *LifecycleService) saveDetached(ctx context.Context, session *models.Session) error {
	ctx, cancel := writeContext(ctx)
	defer cancel()
	if err := s.SessionRepository.Save(ctx, session); err != nil {
		return err
	}
	s.publish(ctx, session)
	return nil
}

// transition writes a status change and mirrors it on the in-memory session.
// The write goes through writeContext so an expired ctx still records the
// stage the pipeline reached.
func (s *LifecycleService) transition(ctx context.Context, session *models.Session, status models.SessionStatus, fields models.SessionFields) error {
	ctx, cancel := writeContext(ctx)
	defer cancel()
	if err := s.SessionRepository.UpdateStatus(ctx, session.MeetingID, status, fields); err != nil {
		slog.ErrorContext(ctx, "failed to update session status",
			"from", session.Status,
			"to", status,
			logging.ErrKey, err,
		)
		return err
	}
	fields.Apply(session)
	session.Status = status
	session.UpdatedAt = s.now()
	slog.InfoContext(ctx, "session status updated", "status", status)
	s.publish(ctx, session)
	return nil
}

func (s *LifecycleService) fail(ctx context.Context, session *models.Session, cause error) {
	slog.ErrorContext(ctx, "transcript pipeline failed", logging.ErrKey, cause)
	msg := cause.Error()
	_ = s.transition(ctx, session, models.StatusError, models.SessionFields{ErrorMessage: &msg})
}

func (s *LifecycleService) notify(ctx context.Context, session *models.Session, text string) {
	if !session.CanDeliver() {
		slog.DebugContext(ctx, "no chat to notify")
		return
	}
	if err := s.ChatNotifier.SendMessage(ctx, session.ServiceURL, session.ConversationID, text); err != nil {
		slog.WarnContext(ctx, "failed to send chat notice", logging.ErrKey, err)
	}
}

func (s *LifecycleService) publish(ctx context.Context, session *models.Session) {
	if s.EventSender == nil {
		return
	}
	event := models.SessionEvent{
		MeetingID:    session.MeetingID,
		Status:       session.Status,
		EventType:    session.EventType,
		Title:        session.Title,
		BlobKey:      session.BlobKey,
		ErrorMessage: session.ErrorMessage,
		OccurredAt:   s.now().UTC(),
	}
	if err := s.EventSender.SendSessionEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish session event", logging.ErrKey, err)
	}
}

func (s *LifecycleService) recordingNotice() string {
	return fmt.Sprintf("🔴 This meeting is being recorded and transcribed by **%s**. "+
		"The transcript will be posted here after the meeting ends.", s.Config.botName())
}

func (s *LifecycleService) welcomeMessage() string {
	return fmt.Sprintf("👋 **%s** has been added to this chat. "+
		"I will post the transcript here when the meeting ends. Type **Help** to see what I can do.", s.Config.botName())
}

// TranscriptMessage renders the chat message that carries a transcript preview.
func TranscriptMessage(title, content string) string {
	if strings.TrimSpace(title) == "" {
		title = "Untitled meeting"
	}
	return fmt.Sprintf("📝 **Meeting Transcript**\n\n**%s**\n\n%s", title, TruncatePreview(content))
}

// TruncatePreview cuts s to the preview limit and marks the cut.
func TruncatePreview(s string) string {
	if utf8.RuneCountInString(s) <= constants.TranscriptPreviewLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:constants.TranscriptPreviewLimit]) + TruncationMarker
}

// BlobKey returns the storage key of a meeting transcript written at t.
func BlobKey(t time.Time, meetingID string) string {
	return fmt.Sprintf("%s/%s/%s.vtt", constants.TranscriptBlobPrefix, t.UTC().Format(time.DateOnly), SanitizeKey(meetingID))
}

// SanitizeKey replaces every character outside [A-Za-z0-9._-] with '_'.
func SanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, s)
}
