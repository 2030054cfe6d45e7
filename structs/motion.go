package structs

import (
	"committeehub/models"
	"committeehub/services"
)

type MotionRequest struct {
	Title          string            `json:"title" binding:"required,max=200"`
	Description    string            `json:"description" binding:"max=5000"`
	Type           models.MotionType `json:"type" binding:"omitempty,oneof=standard procedure special"`
	ParentMotionID string            `json:"parentMotionId"`
	VariantOf      models.Variant    `json:"variantOf"`
}

func (r MotionRequest) Input() services.MotionInput {
	return services.MotionInput{
		Title:          r.Title,
		Description:    r.Description,
		Type:           r.Type,
		ParentMotionID: r.ParentMotionID,
		VariantOf:      r.VariantOf,
	}
}

type DiscussionRequest struct {
	Stance  models.Stance `json:"stance" binding:"omitempty,oneof=pro con neutral"`
	Content string        `json:"content" binding:"required,max=5000"`
}

type VoteRequest struct {
	Choice models.VoteChoice `json:"choice" binding:"required,oneof=support against abstain"`
}

type DecisionRequest struct {
	Outcome models.MotionStatus `json:"outcome" binding:"required,oneof=passed failed postponed"`
	Summary string              `json:"summary" binding:"max=5000"`
	Pros    string              `json:"pros" binding:"max=5000"`
	Cons    string              `json:"cons" binding:"max=5000"`
}

type OverturnRequest struct {
	Title       string `json:"title" binding:"max=200"`
	Description string `json:"description" binding:"max=5000"`
}
