package ports

import (
	"context"
	"strings"
)

type ctxKey string

// CtxActorID carries the authenticated user id into services that audit.
const CtxActorID ctxKey = "actor_id"

func ActorID(ctx context.Context) string {
	if v, ok := ctx.Value(CtxActorID).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
