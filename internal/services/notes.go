package services

import (
	"fmt"
	"time"

	"goto-jobdiva-bridge/internal/models"
)

// MaxExcerptLength bounds the message text quoted in an outbound SMS note.
const MaxExcerptLength = 100

// Excerpt truncates body to MaxExcerptLength runes, marking the cut with "...".
func Excerpt(body string) string {
	r := []rune(body)
	if len(r) <= MaxExcerptLength {
		return body
	}
	return string(r[:MaxExcerptLength]) + "..."
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func outboundSMSNote(recruiterName, recruiterPhone, candidatePhone, body string, at time.Time) string {
	return fmt.Sprintf("[GoTo][SMS][Outbound] Recruiter: %s (%s) → Candidate: %s\nMessage: \"%s\"\nTime: %s",
		recruiterName, recruiterPhone, candidatePhone, Excerpt(body), formatTime(at))
}

func outboundCallAttemptNote(recruiterName, recruiterPhone, candidatePhone, callID string, at time.Time) string {
	if callID == "" {
		callID = "N/A"
	}
	return fmt.Sprintf("[GoTo][Call][Outbound Attempt] Recruiter: %s (%s) → Candidate: %s\nTime: %s\nStatus: Initiated\nCall ID: %s",
		recruiterName, recruiterPhone, candidatePhone, formatTime(at), callID)
}

func messageEventNote(ev MessageEvent, from, to, recruiterName string) string {
	if ev.Direction == models.DirectionInbound {
		return fmt.Sprintf("[GoTo][SMS][Inbound] Candidate: %s → Recruiter: %s (%s)\nMessage: \"%s\"\nReceived: %s",
			from, recruiterName, to, ev.Body, ev.Timestamp)
	}
	return fmt.Sprintf("[GoTo][SMS][Outbound Status] Recruiter: %s (%s) → Candidate: %s\nStatus: %s\nUpdated: %s",
		recruiterName, from, to, ev.Status, ev.Timestamp)
}

func callEventNote(ev CallEvent, from, to, recruiterName string) string {
	duration := "N/A"
	if ev.DurationSeconds != nil && *ev.DurationSeconds > 0 {
		duration = fmt.Sprintf("%d seconds", *ev.DurationSeconds)
	}
	if ev.Direction == models.DirectionOutbound {
		return fmt.Sprintf("[GoTo][Call][Outbound] Recruiter: %s (%s) → Candidate: %s\nResult: %s | Duration: %s\nTime: %s",
			recruiterName, from, to, ev.CallResult, duration, ev.StartTime)
	}
	return fmt.Sprintf("[GoTo][Call][Inbound] Candidate: %s → Recruiter: %s (%s)\nResult: %s | Duration: %s\nTime: %s",
		from, recruiterName, to, ev.CallResult, duration, ev.StartTime)
}
