package services

import (
	"strings"

	"committeehub/models"
)

// MatchKind records which identity attribute linked a caller to a member record
type MatchKind string

const (
	MatchReference MatchKind = "reference"
	MatchEmail     MatchKind = "email"
	MatchName      MatchKind = "name"
)

// MemberMatch is the outcome of resolving an identity against a member list.
// Member points into the slice that was searched.
type MemberMatch struct {
	Member *models.Member
	Index  int
	By     MatchKind
}

// ResolveMember finds the caller's member record. Each strategy scans the whole
// list before the next one runs, so a reference match further down the list
// beats an email match near the top.
func ResolveMember(members []models.Member, who models.Identity) (MemberMatch, bool) {
	if !who.ID.IsZero() {
		for i := range members {
			if members[i].UserID != nil && *members[i].UserID == who.ID {
				return MemberMatch{Member: &members[i], Index: i, By: MatchReference}, true
			}
		}
	}
	if email := strings.TrimSpace(who.Email); email != "" {
		for i := range members {
			if members[i].Email != "" && strings.EqualFold(members[i].Email, email) {
				return MemberMatch{Member: &members[i], Index: i, By: MatchEmail}, true
			}
		}
	}
	if name := strings.TrimSpace(who.Name); name != "" {
		for i := range members {
			if members[i].Name != "" && strings.EqualFold(strings.TrimSpace(members[i].Name), name) {
				return MemberMatch{Member: &members[i], Index: i, By: MatchName}, true
			}
		}
	}
	return MemberMatch{Index: -1}, false
}

func findMemberByID(members []models.Member, id string) int {
	for i := range members {
		if members[i].ID.Hex() == id {
			return i
		}
	}
	return -1
}
