package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"committeehub/internal/live"
	"committeehub/internal/storage"
	"committeehub/models"
	"committeehub/utils"

	"github.com/badoux/checkmail"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxMembershipAttempts bounds the optimistic read-modify-write loop
const maxMembershipAttempts = 5

// MemberInput seats someone on a committee. Nil Permissions and an empty list
// both mean the default set.
type MemberInput struct {
	UserID      string
	Name        string
	Email       string
	Role        models.Role
	Permissions []models.Permission
}

// MemberUpdate edits a seat. Nil fields are unchanged; a non-nil empty
// Permissions list clears the explicit set.
type MemberUpdate struct {
	Name        *string
	Email       *string
	Role        *models.Role
	Permissions []models.Permission
}

type CommitteeInput struct {
	Name        string
	Description string
	Members     []MemberInput
	Settings    SettingsPatch
}

type HandInput struct {
	Stance models.Stance
	Note   string
}

// CommitteeDetail is a committee with its motions and the caller's seat
type CommitteeDetail struct {
	Committee *models.Committee   `json:"committee"`
	Motions   []models.Motion     `json:"motions"`
	Me        *models.Member      `json:"me,omitempty"`
	Abilities []models.Permission `json:"permissions"`
}

// CommitteeService owns committee membership, settings and the speaker queue.
type CommitteeService struct {
	access
	motions storage.MotionStore
	users   storage.UserStore
	policy  *Policy
}

func NewCommitteeService(committees storage.CommitteeStore, motions storage.MotionStore, users storage.UserStore, policy *Policy, opts Options) *CommitteeService {
	return &CommitteeService{
		access:  access{committees: committees, opts: opts.withDefaults()},
		motions: motions,
		users:   users,
		policy:  policy,
	}
}

// CreateCommittee stores a new committee. The member list must end up with
// exactly one owner; with none supplied the creator takes the seat.
func (s *CommitteeService) CreateCommittee(ctx context.Context, who models.Identity, in CommitteeInput) (*models.Committee, error) {
	if !who.Authenticated() {
		return nil, ErrAccessDenied
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("committee name is required")
	}

	members := make([]models.Member, 0, len(in.Members)+1)
	for _, candidate := range in.Members {
		member, err := s.normalizeMember(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if duplicateSeat(members, member, -1) {
			return nil, validationf("%s is listed more than once", seatLabel(member))
		}
		members = append(members, member)
	}
	members, err := EnsureOwner(members, who)
	if err != nil {
		return nil, err
	}
	if err := assertSingleOwner(members); err != nil {
		return nil, err
	}

	settings := MergeSettings(nil, in.Settings)
	now := s.opts.Now()
	committee := &models.Committee{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Settings:    &settings,
		Members:     members,
		HandRaises:  []models.HandRaise{},
		CreatedBy:   who.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.committees.InsertCommittee(ctx, committee); err != nil {
		return nil, err
	}
	s.opts.Metrics.CommitteeCreated()
	s.opts.Logger.Info("committee created", "committee", committee.ID.Hex(), "members", len(members))
	s.publish(ctx, committee.ID, EventCommitteeCreated, committee)
	return committee, nil
}

// ListCommittees returns every committee the caller can see.
func (s *CommitteeService) ListCommittees(ctx context.Context, who models.Identity) ([]models.Committee, error) {
	if !who.Authenticated() {
		return nil, ErrAccessDenied
	}
	return s.committees.ListVisibleCommittees(ctx, who)
}

// GetCommittee returns the committee, its motions newest first, and the
// caller's seat when one resolves.
func (s *CommitteeService) GetCommittee(ctx context.Context, id primitive.ObjectID, who models.Identity) (*CommitteeDetail, error) {
	committee, err := s.visibleCommittee(ctx, id, who)
	if err != nil {
		return nil, err
	}
	motions, err := s.motions.ListMotions(ctx, committee.ID)
	if err != nil {
		return nil, err
	}
	settings := committee.EffectiveSettings()
	for i := range motions {
		motions[i] = *PresentMotion(&motions[i], settings)
	}
	detail := &CommitteeDetail{Committee: committee, Motions: motions, Abilities: []models.Permission{}}
	if match, ok := ResolveMember(committee.Members, who); ok {
		me := *match.Member
		detail.Me = &me
		detail.Abilities = s.policy.EffectivePermissions(match.Member)
	}
	return detail, nil
}

// UpdateSettings merges patch into the committee settings.
func (s *CommitteeService) UpdateSettings(ctx context.Context, id primitive.ObjectID, who models.Identity, patch SettingsPatch) (*models.Committee, error) {
	committee, match, err := s.member(ctx, id, who)
	if err != nil {
		return nil, err
	}
	if !s.policy.RoleAllows(match.Member.Role, ActionManageSettings) {
		return nil, s.deny(ActionManageSettings, "only the owner or chair can change settings")
	}
	merged := MergeSettings(committee.Settings, patch)
	updated, err := s.committees.SetSettings(ctx, committee.ID, merged)
	if err != nil {
		return nil, notFound(err, "committee")
	}
	s.opts.Logger.Info("committee settings updated", "committee", committee.ID.Hex(), "allowSpecialMotions", merged.AllowSpecialMotions, "minSpeakers", merged.MinSpeakersBeforeVote)
	s.publish(ctx, committee.ID, EventSettingsUpdated, merged)
	return updated, nil
}

// AddMember seats a new member.
func (s *CommitteeService) AddMember(ctx context.Context, id primitive.ObjectID, who models.Identity, in MemberInput) (*models.Committee, error) {
	member, err := s.normalizeMember(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.mutateMembers(ctx, id, who, ActionManageMembers, "add", func(members []models.Member, _ MemberMatch) ([]models.Member, error) {
		if duplicateSeat(members, member, -1) {
			return nil, validationf("%s is already a member", seatLabel(member))
		}
		if err := CheckAddMember(members, member); err != nil {
			return nil, err
		}
		return append(members, member), nil
	})
}

// UpdateMember edits the seat identified by memberID.
func (s *CommitteeService) UpdateMember(ctx context.Context, id primitive.ObjectID, who models.Identity, memberID string, in MemberUpdate) (*models.Committee, error) {
	if in.Role != nil && !in.Role.Valid() {
		return nil, validationf("unknown role %q", *in.Role)
	}
	perms, err := normalizePermissions(in.Permissions, false)
	if err != nil {
		return nil, err
	}
	var email *string
	if in.Email != nil {
		normalized, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		email = &normalized
	}

	return s.mutateMembers(ctx, id, who, ActionManageMembers, "update", func(members []models.Member, _ MemberMatch) ([]models.Member, error) {
		index := findMemberByID(members, memberID)
		if index < 0 {
			return nil, fmt.Errorf("%w: member", ErrNotFound)
		}
		if in.Role != nil && *in.Role != members[index].Role {
			if err := CheckRoleChange(members, index, *in.Role); err != nil {
				return nil, err
			}
			members[index].Role = *in.Role
		}
		if in.Name != nil {
			members[index].Name = strings.TrimSpace(*in.Name)
		}
		if email != nil {
			members[index].Email = *email
		}
		if members[index].Name == "" && members[index].Email == "" {
			return nil, validationf("member name or email is required")
		}
		if duplicateSeat(members, members[index], index) {
			return nil, validationf("%s is already a member", seatLabel(members[index]))
		}
		if perms != nil {
			members[index].Permissions = perms
		}
		return members, nil
	})
}

// RemoveMember drops the seat identified by memberID.
func (s *CommitteeService) RemoveMember(ctx context.Context, id primitive.ObjectID, who models.Identity, memberID string) (*models.Committee, error) {
	return s.mutateMembers(ctx, id, who, ActionManageMembers, "remove", func(members []models.Member, _ MemberMatch) ([]models.Member, error) {
		index := findMemberByID(members, memberID)
		if index < 0 {
			return nil, fmt.Errorf("%w: member", ErrNotFound)
		}
		if err := CheckRemoveMember(members, index); err != nil {
			return nil, err
		}
		return slices.Delete(members, index, index+1), nil
	})
}

// TransferOwnership hands the owner seat to memberID. The previous owner stays
// on as chair.
func (s *CommitteeService) TransferOwnership(ctx context.Context, id primitive.ObjectID, who models.Identity, memberID string) (*models.Committee, error) {
	return s.mutateMembers(ctx, id, who, ActionTransferOwnership, "transfer", func(members []models.Member, actor MemberMatch) ([]models.Member, error) {
		index := findMemberByID(members, memberID)
		if index < 0 {
			return nil, fmt.Errorf("%w: member", ErrNotFound)
		}
		if index == actor.Index {
			return nil, validationf("you already own this committee")
		}
		if members[index].UserID == nil {
			return nil, validationf("ownership can only pass to a registered member")
		}
		members[actor.Index].Role = models.RoleChair
		members[index].Role = models.RoleOwner
		return members, nil
	})
}

// mutateMembers runs one membership change as an optimistic
// read-check-write, retrying when another writer bumps the version first.
func (s *CommitteeService) mutateMembers(ctx context.Context, id primitive.ObjectID, who models.Identity, action models.Permission, op string, mutate func([]models.Member, MemberMatch) ([]models.Member, error)) (*models.Committee, error) {
	for attempt := 1; attempt <= maxMembershipAttempts; attempt++ {
		committee, match, err := s.member(ctx, id, who)
		if err != nil {
			return nil, err
		}
		if !s.policy.RoleAllows(match.Member.Role, action) {
			if action == ActionTransferOwnership {
				return nil, s.deny(action, "only the owner can transfer ownership")
			}
			return nil, s.deny(action, "only the owner or chair can manage members")
		}
		members, err := mutate(committee.Members, match)
		if err != nil {
			return nil, err
		}
		if err := assertSingleOwner(members); err != nil {
			return nil, err
		}
		updated, err := s.committees.ReplaceMembers(ctx, committee.ID, committee.Version, members)
		if errors.Is(err, storage.ErrVersionConflict) {
			s.opts.Metrics.MembershipConflict()
			s.opts.Logger.Debug("membership write lost a race, retrying", "committee", id.Hex(), "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, notFound(err, "committee")
		}
		s.opts.Metrics.MembershipWrite(op)
		s.publish(ctx, committee.ID, EventMembersChanged, updated.Members)
		return updated, nil
	}
	return nil, fmt.Errorf("%w: membership changed concurrently, try again", ErrConflict)
}

// RaiseHand puts the caller in the speaker queue, replacing an earlier entry.
func (s *CommitteeService) RaiseHand(ctx context.Context, id primitive.ObjectID, who models.Identity, in HandInput) (*models.Committee, error) {
	committee, match, err := s.member(ctx, id, who)
	if err != nil {
		return nil, err
	}
	stance := in.Stance
	if stance == "" {
		stance = models.StanceNeutral
	}
	if !stance.Valid() {
		return nil, validationf("unknown stance %q", in.Stance)
	}
	if s.opts.Limiter != nil {
		allowed, err := s.opts.Limiter.Allow(ctx, committee.ID, who.ID)
		if err != nil {
			s.opts.Logger.Warn("hand raise limiter unavailable", "error", err)
		} else if !allowed {
			s.opts.Metrics.HandRaiseLimited()
			return nil, ErrRateLimited
		}
	}

	userID := who.ID
	raise := models.HandRaise{
		ID:        primitive.NewObjectID(),
		UserID:    &userID,
		Name:      displayName(who, match.Member),
		Email:     who.Email,
		Stance:    stance,
		Note:      strings.TrimSpace(in.Note),
		CreatedAt: s.opts.Now(),
	}
	for _, existing := range committee.HandRaises {
		if existing.UserID != nil && *existing.UserID == who.ID {
			raise.ID = existing.ID
			break
		}
	}
	updated, err := s.committees.UpsertHandRaise(ctx, committee.ID, raise)
	if err != nil {
		return nil, notFound(err, "committee")
	}
	s.opts.Metrics.HandRaised()
	s.publish(ctx, committee.ID, EventHandRaised, raise)
	return updated, nil
}

// LowerHand removes a queue entry. Authors lower their own; the owner and
// chair can lower anyone's.
func (s *CommitteeService) LowerHand(ctx context.Context, id primitive.ObjectID, who models.Identity, handID primitive.ObjectID) (*models.Committee, error) {
	committee, match, err := s.member(ctx, id, who)
	if err != nil {
		return nil, err
	}
	var hand *models.HandRaise
	for i := range committee.HandRaises {
		if committee.HandRaises[i].ID == handID {
			hand = &committee.HandRaises[i]
			break
		}
	}
	if hand == nil {
		return nil, fmt.Errorf("%w: hand raise", ErrNotFound)
	}
	own := hand.UserID != nil && *hand.UserID == who.ID
	if !own && !s.policy.RoleAllows(match.Member.Role, ActionModerateHands) {
		return nil, s.deny(ActionModerateHands, "only the owner or chair can lower someone else's hand")
	}
	updated, err := s.committees.RemoveHandRaise(ctx, committee.ID, handID)
	if err != nil {
		return nil, notFound(err, "committee")
	}
	s.publish(ctx, committee.ID, EventHandLowered, map[string]string{"id": handID.Hex()})
	return updated, nil
}

// DeleteCommittee removes the committee and then its motions.
func (s *CommitteeService) DeleteCommittee(ctx context.Context, id primitive.ObjectID, who models.Identity) error {
	committee, match, err := s.member(ctx, id, who)
	if err != nil {
		return err
	}
	if !s.policy.RoleAllows(match.Member.Role, ActionDeleteCommittee) {
		return s.deny(ActionDeleteCommittee, "only the owner can delete a committee")
	}
	if err := s.committees.DeleteCommittee(ctx, committee.ID); err != nil {
		return notFound(err, "committee")
	}
	removed, err := s.motions.DeleteCommitteeMotions(ctx, committee.ID)
	if err != nil {
		s.opts.Logger.Error("failed to delete committee motions", "committee", committee.ID.Hex(), "error", err)
		return err
	}
	s.opts.Metrics.CommitteeDeleted()
	s.opts.Logger.Info("committee deleted", "committee", committee.ID.Hex(), "motions", removed)
	s.publish(ctx, committee.ID, EventCommitteeDeleted, map[string]any{"motions": removed})
	return nil
}

// Activity returns the newest committee events, newest first. Without a
// configured feed the list is empty.
func (s *CommitteeService) Activity(ctx context.Context, id primitive.ObjectID, who models.Identity, limit int64) ([]*live.Event, error) {
	committee, err := s.visibleCommittee(ctx, id, who)
	if err != nil {
		return nil, err
	}
	if s.opts.Feed == nil {
		return []*live.Event{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.opts.Feed.Recent(ctx, committee.ID, limit)
}

// normalizeMember validates a member input and links it to a registered
// account when the email belongs to one.
func (s *CommitteeService) normalizeMember(ctx context.Context, in MemberInput) (models.Member, error) {
	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return models.Member{}, validationf("unknown role %q", in.Role)
	}
	perms, err := normalizePermissions(in.Permissions, true)
	if err != nil {
		return models.Member{}, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return models.Member{}, err
	}
	member := models.Member{
		ID:          primitive.NewObjectID(),
		Name:        strings.TrimSpace(in.Name),
		Email:       email,
		Role:        role,
		Permissions: perms,
	}

	if raw := strings.TrimSpace(in.UserID); raw != "" {
		userID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return models.Member{}, validationf("invalid user id")
		}
		user, err := s.users.FindUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return models.Member{}, validationf("user %s does not exist", raw)
			}
			return models.Member{}, err
		}
		member.UserID = &user.ID
		if member.Email == "" {
			member.Email = user.Email
		}
		if member.Name == "" {
			member.Name = user.Name
		}
	} else if member.Email != "" {
		user, err := s.users.FindUserByEmail(ctx, member.Email)
		switch {
		case err == nil:
			member.UserID = &user.ID
			if member.Name == "" {
				member.Name = user.Name
			}
		case !errors.Is(err, storage.ErrNotFound):
			return models.Member{}, err
		}
	}

	if member.Name == "" && member.Email == "" {
		return models.Member{}, validationf("member name or email is required")
	}
	if member.Name == "" {
		member.Name = utils.ExtractNameFromEmail(member.Email)
	}
	return member, nil
}

// normalizePermissions validates a permission list. With defaultEmpty an
// absent or empty list becomes the default set.
func normalizePermissions(in []models.Permission, defaultEmpty bool) ([]models.Permission, error) {
	if len(in) == 0 {
		if defaultEmpty {
			return slices.Clone(DefaultPermissions), nil
		}
		if in == nil {
			return nil, nil
		}
		return []models.Permission{}, nil
	}
	out := make([]models.Permission, 0, len(in))
	for _, p := range in {
		if !p.Valid() {
			return nil, validationf("unknown permission %q", p)
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", nil
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return "", validationf("invalid email %q", raw)
	}
	return email, nil
}

// duplicateSeat reports whether candidate shares an account or an email with
// any member other than members[skip].
func duplicateSeat(members []models.Member, candidate models.Member, skip int) bool {
	for i, m := range members {
		if i == skip {
			continue
		}
		if candidate.UserID != nil && m.UserID != nil && *candidate.UserID == *m.UserID {
			return true
		}
		if candidate.Email != "" && strings.EqualFold(candidate.Email, m.Email) {
			return true
		}
	}
	return false
}

func seatLabel(m models.Member) string {
	if m.Email != "" {
		return m.Email
	}
	return m.Name
}
