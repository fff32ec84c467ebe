package workflow

import "github.com/garyjia/cost-approval/internal/domain/entity"

// State is an approval record status as seen by the state machine
type State = entity.ApprovalStatus
