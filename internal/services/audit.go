package services

import (
	"context"

	"collab-service/internal/observability"
	"collab-service/internal/telemetry"
)

func auditEntry(ctx context.Context, level, text, teamID, userID string, fields map[string]string) telemetry.Entry {
	entry := telemetry.Entry{
		Level:     level,
		Text:      text,
		RequestID: observability.RequestIDFromContext(ctx),
		TeamID:    teamID,
		Fields:    fields,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	return entry
}
