package services

import (
	"slices"

	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CountOwners returns how many members hold the owner role
func CountOwners(members []models.Member) int {
	n := 0
	for _, m := range members {
		if m.Role == models.RoleOwner {
			n++
		}
	}
	return n
}

func ownerIndex(members []models.Member) int {
	for i, m := range members {
		if m.Role == models.RoleOwner {
			return i
		}
	}
	return -1
}

// CheckAddMember rejects a second owner.
func CheckAddMember(members []models.Member, candidate models.Member) error {
	if candidate.Role == models.RoleOwner && CountOwners(members) > 0 {
		return ErrDuplicateOwner
	}
	return nil
}

// CheckRoleChange validates giving members[index] the new role.
func CheckRoleChange(members []models.Member, index int, role models.Role) error {
	if index < 0 || index >= len(members) {
		return ErrNotFound
	}
	current := members[index].Role
	if role == models.RoleOwner && current != models.RoleOwner && CountOwners(members) > 0 {
		return ErrDuplicateOwner
	}
	if current == models.RoleOwner && role != models.RoleOwner && CountOwners(members) <= 1 {
		return ErrOwnerRequired
	}
	return nil
}

// CheckRemoveMember refuses to drop the sole owner.
func CheckRemoveMember(members []models.Member, index int) error {
	if index < 0 || index >= len(members) {
		return ErrNotFound
	}
	if members[index].Role == models.RoleOwner && CountOwners(members) <= 1 {
		return ErrOwnerRequired
	}
	return nil
}

// EnsureOwner makes a freshly supplied member list satisfy the owner
// invariant. With no owner the creator is seated as owner, or promoted when
// listed by account or email. A seat that only shares the creator's name is
// someone else. More than one owner is an error.
func EnsureOwner(members []models.Member, creator models.Identity) ([]models.Member, error) {
	switch CountOwners(members) {
	case 1:
		return members, nil
	case 0:
	default:
		return nil, ErrDuplicateOwner
	}

	out := slices.Clone(members)
	if match, ok := ResolveMember(out, creator); ok && match.By != MatchName {
		m := &out[match.Index]
		m.Role = models.RoleOwner
		if m.UserID == nil {
			id := creator.ID
			m.UserID = &id
		}
		return out, nil
	}

	id := creator.ID
	owner := models.Member{
		ID:          primitive.NewObjectID(),
		UserID:      &id,
		Name:        creator.Name,
		Email:       creator.Email,
		Role:        models.RoleOwner,
		Permissions: slices.Clone(DefaultPermissions),
	}
	return append([]models.Member{owner}, out...), nil
}

// assertSingleOwner is the last gate before any membership write
func assertSingleOwner(members []models.Member) error {
	switch n := CountOwners(members); {
	case n == 1:
		return nil
	case n == 0:
		return ErrOwnerRequired
	default:
		return ErrDuplicateOwner
	}
}
