package structs

import (
	"committeehub/models"
	"committeehub/services"
)

type MemberRequest struct {
	UserID      string              `json:"userId" binding:"omitempty,len=24,hexadecimal"`
	Name        string              `json:"name" binding:"max=100"`
	Email       string              `json:"email"`
	Role        models.Role         `json:"role" binding:"omitempty,oneof=owner chair member observer"`
	Permissions []models.Permission `json:"permissions" binding:"omitempty,dive,oneof=createMotion discussion moveToVote vote recordDecision"`
}

func (r MemberRequest) Input() services.MemberInput {
	return services.MemberInput{
		UserID:      r.UserID,
		Name:        r.Name,
		Email:       r.Email,
		Role:        r.Role,
		Permissions: r.Permissions,
	}
}

// MemberUpdateRequest leaves absent fields untouched. An explicit empty
// permissions list clears the member's permissions.
type MemberUpdateRequest struct {
	Name        *string             `json:"name" binding:"omitempty,max=100"`
	Email       *string             `json:"email"`
	Role        *models.Role        `json:"role" binding:"omitempty,oneof=owner chair member observer"`
	Permissions []models.Permission `json:"permissions" binding:"omitempty,dive,oneof=createMotion discussion moveToVote vote recordDecision"`
}

func (r MemberUpdateRequest) Update() services.MemberUpdate {
	return services.MemberUpdate{
		Name:        r.Name,
		Email:       r.Email,
		Role:        r.Role,
		Permissions: r.Permissions,
	}
}

type CreateCommitteeRequest struct {
	Name        string                 `json:"name" binding:"required,max=200"`
	Description string                 `json:"description" binding:"max=2000"`
	Members     []MemberRequest        `json:"members" binding:"omitempty,dive"`
	Settings    services.SettingsPatch `json:"settings"`
}

func (r CreateCommitteeRequest) Input() services.CommitteeInput {
	members := make([]services.MemberInput, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, m.Input())
	}
	return services.CommitteeInput{
		Name:        r.Name,
		Description: r.Description,
		Members:     members,
		Settings:    r.Settings,
	}
}

type TransferOwnershipRequest struct {
	MemberID string `json:"memberId" binding:"required"`
}

type HandRaiseRequest struct {
	Stance models.Stance `json:"stance" binding:"omitempty,oneof=pro con neutral"`
	Note   string        `json:"note" binding:"max=500"`
}
