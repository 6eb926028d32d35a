package services

import (
	"context"

	"presence-gateway/internal/domain"
	"presence-gateway/pkg/logger"
)

// PermissionGate answers read/write authorization for (user, channel)
// pairs. With checking disabled everything is granted; with it enabled
// any lookup failure denies both permissions. A permission check never
// surfaces an error to its caller.
type PermissionGate struct {
	repo    domain.EntityAccessRepository
	enabled bool
	log     logger.Logger
}

func NewPermissionGate(repo domain.EntityAccessRepository, enabled bool, log logger.Logger) *PermissionGate {
	return &PermissionGate{
		repo:    repo,
		enabled: enabled,
		log:     log,
	}
}

func (g *PermissionGate) Check(ctx context.Context, userID, channel string) domain.EntityAccess {
	if !g.enabled {
		return domain.EntityAccess{Readable: true, Creatable: true}
	}

	entityName, err := domain.EntityFromChannel(channel)
	if err != nil {
		g.log.Error("Failed to derive entity from channel", "channel", channel, "error", err)
		return domain.EntityAccess{}
	}

	access, err := g.repo.GetAccess(ctx, userID, entityName)
	if err != nil {
		// Fail closed.
		g.log.Error("Permission lookup failed", "user_id", userID,
			"entity", entityName, "error", err)
		return domain.EntityAccess{}
	}

	return access
}
