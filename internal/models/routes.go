package models

import (
	"fmt"
	"net/http"
)

// ParentType returns the owning entity type for owned sub-entities.
func (t EntityType) ParentType() (EntityType, bool) {
	switch t {
	case EntityShoppingItem:
		return EntityShoppingList, true
	case EntityGoalTask:
		return EntityGoal, true
	default:
		return "", false
	}
}

func (t EntityType) basePath() string {
	switch t {
	case EntityShoppingList:
		return "/api/v1/shopping-lists"
	case EntityShoppingItem:
		return "/api/v1/shopping-items"
	case EntityGoal:
		return "/api/v1/goals"
	case EntityGoalTask:
		return "/api/v1/goal-tasks"
	case EntityAsset:
		return "/api/v1/assets"
	default:
		return "/api/v1/" + string(t)
	}
}

// RouteFor returns the REST method and endpoint recorded on a pending
// operation. Creates of owned sub-entities nest under the parent; the
// parent segment stays symbolic until the parent's server id is known,
// since the id may not exist yet at enqueue time.
func RouteFor(t EntityType, op OperationType, serverID, parentServerID *int64) (method, endpoint string) {
	parentSegment := ":parent"
	if parentServerID != nil {
		parentSegment = fmt.Sprintf("%d", *parentServerID)
	}
	idSegment := ":local"
	if serverID != nil {
		idSegment = fmt.Sprintf("%d", *serverID)
	}

	switch op {
	case OpCreate:
		if parent, ok := t.ParentType(); ok {
			return http.MethodPost, fmt.Sprintf("%s/%s%s", parent.basePath(), parentSegment, childSegment(t))
		}
		return http.MethodPost, t.basePath()
	case OpUpdate:
		return http.MethodPut, t.basePath() + "/" + idSegment
	case OpDelete:
		return http.MethodDelete, t.basePath() + "/" + idSegment
	case OpToggle:
		return http.MethodPost, t.basePath() + "/" + idSegment + "/toggle"
	default:
		return http.MethodPost, t.basePath()
	}
}

func childSegment(t EntityType) string {
	switch t {
	case EntityShoppingItem:
		return "/items"
	case EntityGoalTask:
		return "/tasks"
	default:
		return ""
	}
}
