package consent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neurobridge/matchcore/internal/types"
)

// AdvanceStage moves an active connection along the hiring pipeline. A
// revoked connection cannot move; an out-of-graph move is rejected without
// mutation.
func (w *Workflow) AdvanceStage(ctx context.Context, connectionID, actorID uuid.UUID, stage types.PipelineStage) (*types.ConnectionRecord, error) {
	connection, err := w.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if connection.Status == types.ConnectionRevoked {
		return nil, &ConsentRevokedError{ConnectionID: connectionID}
	}
	if !IsStageTransitionAllowed(connection.PipelineStage, stage) {
		return nil, &types.ValidationError{
			Field:   "stage",
			Message: fmt.Sprintf("connection cannot move from %s to %s", connection.PipelineStage, stage),
		}
	}

	from := connection.PipelineStage
	connection.PipelineStage = stage
	connection.UpdatedAt = w.now()
	if err := w.connections.Update(ctx, connection); err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}

	w.append(ctx, types.EventStageChanged, actorID.String(), map[string]any{
		"connection_id": connectionID.String(),
		"from":          string(from),
		"to":            string(stage),
	})
	return connection, nil
}
