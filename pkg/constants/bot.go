// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Defaults for the meeting bot.
const (
	// DefaultBotName is the display name used in chat messages and for mention stripping.
	DefaultBotName = "Meeting Fetcher"

	// TranscriptPreviewLimit is the number of characters of a transcript posted to chat.
	TranscriptPreviewLimit = 3000

	// DefaultTranscriptFormat is the format requested when downloading transcripts.
	DefaultTranscriptFormat = ContentTypeVTT

	// TranscriptBlobPrefix is the top-level namespace for stored transcripts.
	TranscriptBlobPrefix = "transcripts"

	// DefaultLookahead is how far ahead the auto-install sweep looks for meetings.
	DefaultLookahead = 60 * time.Minute
)
