// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

// onlineMeeting is the Graph onlineMeeting resource.
type onlineMeeting struct {
	ID         string `json:"id"`
	JoinWebURL string `json:"joinWebUrl"`
	Subject    string `json:"subject"`
	ChatInfo   struct {
		ThreadID string `json:"threadId"`
	} `json:"chatInfo"`
}

// callTranscript is the Graph callTranscript resource.
type callTranscript struct {
	ID              string    `json:"id"`
	MeetingID       string    `json:"meetingId"`
	CreatedDateTime time.Time `json:"createdDateTime"`
}

// JoinURLFilter builds the $filter matching a join URL. Percent-encoded URLs
// are decoded first and single quotes are doubled for OData.
func JoinURLFilter(joinURL string) string {
	decoded, err := url.PathUnescape(joinURL)
	if err != nil {
		decoded = joinURL
	}
	return fmt.Sprintf("JoinWebUrl eq '%s'", strings.ReplaceAll(decoded, "'", "''"))
}

// FindOnlineMeetingByJoinURL looks up the organizer's online meeting behind a
// join URL. It returns nil without error when nothing matches.
func (c *Client) FindOnlineMeetingByJoinURL(ctx context.Context, userID, joinURL string) (*models.OnlineMeeting, error) {
	if userID == "" || joinURL == "" {
		return nil, domain.NewValidationError("user id and join url are required")
	}

	target := userPath(userID) + "/onlineMeetings?" + url.Values{"$filter": {JoinURLFilter(joinURL)}}.Encode()

	var page collection[onlineMeeting]
	if err := c.getJSON(ctx, target, &page); err != nil {
		return nil, err
	}
	if len(page.Value) == 0 {
		return nil, nil
	}

	m := page.Value[0]
	return &models.OnlineMeeting{
		ID:         m.ID,
		JoinWebURL: m.JoinWebURL,
		Subject:    m.Subject,
		ThreadID:   m.ChatInfo.ThreadID,
	}, nil
}

// ListTranscripts returns the transcripts of an online meeting in the order
// Graph reports them.
func (c *Client) ListTranscripts(ctx context.Context, userID, meetingID string) ([]models.TranscriptMetadata, error) {
	target := userPath(userID) + "/onlineMeetings/" + url.PathEscape(meetingID) + "/transcripts"

	items, err := getAll[callTranscript](ctx, c, target)
	if err != nil {
		return nil, err
	}

	transcripts := make([]models.TranscriptMetadata, 0, len(items))
	for _, item := range items {
		meeting := item.MeetingID
		if meeting == "" {
			meeting = meetingID
		}
		transcripts = append(transcripts, models.TranscriptMetadata{
			ID:              item.ID,
			MeetingID:       meeting,
			CreatedDateTime: item.CreatedDateTime,
		})
	}
	return transcripts, nil
}

// GetTranscriptContent downloads a transcript in the requested format.
func (c *Client) GetTranscriptContent(ctx context.Context, userID, meetingID, transcriptID, format string) ([]byte, error) {
	if format == "" {
		format = constants.DefaultTranscriptFormat
	}

	target := userPath(userID) + "/onlineMeetings/" + url.PathEscape(meetingID) +
		"/transcripts/" + url.PathEscape(transcriptID) + "/content"

	resp, err := c.do(ctx, request{method: http.MethodGet, target: target, accept: format})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to read transcript content", err)
	}
	return content, nil
}
