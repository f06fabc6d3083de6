package models

import (
	"context"

	"github.com/flowstock/flowstock_backend/utils"
	"github.com/google/uuid"
)

type Identifier interface {
	GetId() int
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// actorFromContext returns the acting username, or "system" for background
// jobs and maintenance binaries that run without a request context.
func actorFromContext(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetUsernameFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return "system"
}
