package services

import (
	"context"
	"strings"

	"committeehub/internal/storage"
	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultOverturnTitle is used when an overturn request arrives without a title
const DefaultOverturnTitle = "Overturn request"

// MotionInput describes a new motion or sub-motion
type MotionInput struct {
	Title          string
	Description    string
	Type           models.MotionType
	ParentMotionID string
	VariantOf      models.Variant
}

type DiscussionInput struct {
	Stance  models.Stance
	Content string
}

type VoteInput struct {
	Choice models.VoteChoice
}

type DecisionInput struct {
	Outcome models.MotionStatus
	Summary string
	Pros    string
	Cons    string
}

type OverturnInput struct {
	Title       string
	Description string
}

// Tally counts the current ballots on a motion
type Tally struct {
	Support int `json:"support"`
	Against int `json:"against"`
	Abstain int `json:"abstain"`
	Total   int `json:"total"`
}

// MotionSummary is the advisory read model shown next to a motion.
// ReadyForVote is never enforced.
type MotionSummary struct {
	Tally        Tally `json:"tally"`
	Speakers     int   `json:"speakers"`
	MinSpeakers  int   `json:"minSpeakersBeforeVote"`
	ReadyForVote bool  `json:"readyForVote"`
}

// MotionView is a motion as returned to clients
type MotionView struct {
	Motion  *models.Motion `json:"motion"`
	Summary MotionSummary  `json:"summary"`
}

// MotionService runs the motion lifecycle: pending until a decision is
// recorded, with discussion and votes accumulating in between.
type MotionService struct {
	access
	motions storage.MotionStore
	policy  *Policy
}

func NewMotionService(committees storage.CommitteeStore, motions storage.MotionStore, policy *Policy, opts Options) *MotionService {
	return &MotionService{
		access:  access{committees: committees, opts: opts.withDefaults()},
		motions: motions,
		policy:  policy,
	}
}

// CreateMotion raises a motion in a committee, optionally derived from a parent.
func (s *MotionService) CreateMotion(ctx context.Context, committeeID primitive.ObjectID, who models.Identity, in MotionInput) (*models.Motion, error) {
	committee, match, err := s.member(ctx, committeeID, who)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasPermission(match.Member, models.PermCreateMotion) {
		return nil, s.deny(models.PermCreateMotion, "you do not have permission to create motions")
	}

	var parent *models.Motion
	if id := strings.TrimSpace(in.ParentMotionID); id != "" {
		parentID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, validationf("invalid parent motion id")
		}
		parent, err = s.motions.FindMotion(ctx, parentID)
		if err != nil {
			return nil, notFound(err, "parent motion")
		}
		if parent.CommitteeID != committee.ID {
			return nil, validationf("parent motion belongs to a different committee")
		}
	}
	return s.insertMotion(ctx, committee, match.Member, who, in, parent)
}

// CreateSubMotion raises a motion derived from parentID in the parent's committee.
func (s *MotionService) CreateSubMotion(ctx context.Context, parentID primitive.ObjectID, who models.Identity, in MotionInput) (*models.Motion, error) {
	if !who.Authenticated() {
		return nil, ErrAccessDenied
	}
	parent, err := s.motions.FindMotion(ctx, parentID)
	if err != nil {
		return nil, notFound(err, "motion")
	}
	committee, match, err := s.member(ctx, parent.CommitteeID, who)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasPermission(match.Member, models.PermCreateMotion) {
		return nil, s.deny(models.PermCreateMotion, "you do not have permission to create motions")
	}
	return s.insertMotion(ctx, committee, match.Member, who, in, parent)
}

func (s *MotionService) insertMotion(ctx context.Context, committee *models.Committee, member *models.Member, who models.Identity, in MotionInput, parent *models.Motion) (*models.Motion, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationf("motion title is required")
	}
	motionType := in.Type
	if motionType == "" {
		motionType = models.MotionStandard
	}
	if !motionType.Valid() {
		return nil, validationf("unknown motion type %q", in.Type)
	}
	variant := in.VariantOf
	if !variant.Valid() {
		return nil, validationf("unknown motion variant %q", in.VariantOf)
	}
	if variant == models.VariantOverturn {
		return nil, validationf("overturn motions are requested through the overturn operation")
	}
	if motionType == models.MotionSpecial && !committee.EffectiveSettings().AllowSpecialMotions {
		return nil, ErrSpecialMotionsDisabled
	}

	var parentID *primitive.ObjectID
	switch {
	case parent != nil:
		id := parent.ID
		parentID = &id
		if variant == models.VariantNone {
			variant = models.VariantRevision
		}
	case variant != models.VariantNone:
		return nil, validationf("a %s motion needs a parent motion", variant)
	}

	now := s.opts.Now()
	motion := &models.Motion{
		ID:             primitive.NewObjectID(),
		CommitteeID:    committee.ID,
		ParentMotionID: parentID,
		VariantOf:      variant,
		Type:           motionType,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Status:         models.StatusPending,
		CreatedBy:      who.ID,
		CreatedByName:  displayName(who, member),
		Discussion:     []models.DiscussionEntry{},
		Votes:          []models.Vote{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.motions.InsertMotion(ctx, motion); err != nil {
		return nil, err
	}
	s.opts.Metrics.MotionCreated(string(motion.Type), string(motion.VariantOf))
	s.opts.Logger.Info("motion created", "motion", motion.ID.Hex(), "committee", committee.ID.Hex(), "type", motion.Type, "variant", motion.VariantOf)
	s.publish(ctx, committee.ID, EventMotionCreated, motion)
	return motion, nil
}

// CreateOverturn asks the committee to reconsider target. Only a member who
// supported the target may ask.
func (s *MotionService) CreateOverturn(ctx context.Context, targetID primitive.ObjectID, who models.Identity, in OverturnInput) (*models.Motion, error) {
	if !who.Authenticated() {
		return nil, ErrAccessDenied
	}
	target, err := s.motions.FindMotion(ctx, targetID)
	if err != nil {
		return nil, notFound(err, "motion")
	}
	committee, match, err := s.member(ctx, target.CommitteeID, who)
	if err != nil {
		return nil, err
	}
	vote, ok := target.VoteBy(who.ID)
	if !ok || vote.Choice != models.ChoiceSupport {
		return nil, ErrNotEligible
	}
	if !committee.EffectiveSettings().AllowSpecialMotions {
		return nil, ErrSpecialMotionsDisabled
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = DefaultOverturnTitle
	}
	parentID := target.ID
	now := s.opts.Now()
	motion := &models.Motion{
		ID:             primitive.NewObjectID(),
		CommitteeID:    committee.ID,
		ParentMotionID: &parentID,
		VariantOf:      models.VariantOverturn,
		Type:           models.MotionSpecial,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Status:         models.StatusPending,
		CreatedBy:      who.ID,
		CreatedByName:  displayName(who, match.Member),
		Discussion:     []models.DiscussionEntry{},
		Votes:          []models.Vote{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.motions.InsertMotion(ctx, motion); err != nil {
		return nil, err
	}
	s.opts.Metrics.MotionCreated(string(motion.Type), string(motion.VariantOf))
	s.opts.Logger.Info("overturn requested", "motion", motion.ID.Hex(), "target", target.ID.Hex())
	s.publish(ctx, committee.ID, EventMotionCreated, motion)
	return motion, nil
}

// motionAccess loads a motion and the caller's seat in its committee.
func (s *MotionService) motionAccess(ctx context.Context, motionID primitive.ObjectID, who models.Identity) (*models.Motion, *models.Committee, MemberMatch, error) {
	if !who.Authenticated() {
		return nil, nil, MemberMatch{}, ErrAccessDenied
	}
	motion, err := s.motions.FindMotion(ctx, motionID)
	if err != nil {
		return nil, nil, MemberMatch{}, notFound(err, "motion")
	}
	committee, match, err := s.member(ctx, motion.CommitteeID, who)
	if err != nil {
		return nil, nil, MemberMatch{}, err
	}
	return motion, committee, match, nil
}

// AddDiscussion appends a discussion entry.
func (s *MotionService) AddDiscussion(ctx context.Context, motionID primitive.ObjectID, who models.Identity, in DiscussionInput) (*models.Motion, error) {
	motion, committee, match, err := s.motionAccess(ctx, motionID, who)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasPermission(match.Member, models.PermDiscussion) {
		return nil, s.deny(models.PermDiscussion, "you do not have permission to join the discussion")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, validationf("discussion content is required")
	}
	stance := in.Stance
	if stance == "" {
		stance = models.StanceNeutral
	}
	if !stance.Valid() {
		return nil, validationf("unknown stance %q", in.Stance)
	}

	entry := models.DiscussionEntry{
		ID:         primitive.NewObjectID(),
		Stance:     stance,
		Content:    content,
		AuthorID:   who.ID,
		AuthorName: displayName(who, match.Member),
		CreatedAt:  s.opts.Now(),
	}
	updated, err := s.motions.PushDiscussion(ctx, motion.ID, entry)
	if err != nil {
		return nil, notFound(err, "motion")
	}
	s.opts.Metrics.DiscussionAdded()
	s.publish(ctx, committee.ID, EventDiscussionAdded, entry)
	return PresentMotion(updated, committee.EffectiveSettings()), nil
}

// CastVote records or replaces the caller's ballot. Status is left alone.
func (s *MotionService) CastVote(ctx context.Context, motionID primitive.ObjectID, who models.Identity, in VoteInput) (*models.Motion, error) {
	motion, committee, match, err := s.motionAccess(ctx, motionID, who)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasPermission(match.Member, models.PermVote) {
		return nil, s.deny(models.PermVote, "you do not have permission to vote")
	}
	choice := in.Choice
	if choice == "" {
		choice = models.ChoiceSupport
	}
	if !choice.Valid() {
		return nil, validationf("unknown vote choice %q", in.Choice)
	}

	vote := models.Vote{
		Choice:     choice,
		VoterID:    who.ID,
		VoterName:  displayName(who, match.Member),
		VoterEmail: who.Email,
		CastAt:     s.opts.Now(),
	}
	updated, err := s.motions.UpsertVote(ctx, motion.ID, vote)
	if err != nil {
		return nil, notFound(err, "motion")
	}
	settings := committee.EffectiveSettings()
	s.opts.Metrics.VoteCast(string(choice))
	s.publish(ctx, committee.ID, EventVoteCast, map[string]any{
		"motionId": motion.ID.Hex(),
		"tally":    TallyVotes(updated),
	})
	return PresentMotion(updated, settings), nil
}

// RecordDecision writes the outcome and the status together. A later decision
// replaces the earlier one entirely.
func (s *MotionService) RecordDecision(ctx context.Context, motionID primitive.ObjectID, who models.Identity, in DecisionInput) (*models.Motion, error) {
	motion, committee, match, err := s.motionAccess(ctx, motionID, who)
	if err != nil {
		return nil, err
	}
	if !s.policy.RoleAllows(match.Member.Role, models.PermRecordDecision) {
		return nil, s.deny(models.PermRecordDecision, "only the owner or chair can record decisions")
	}
	if !in.Outcome.Terminal() {
		return nil, validationf("outcome must be passed, failed or postponed")
	}

	record := models.DecisionRecord{
		Outcome:        in.Outcome,
		Summary:        strings.TrimSpace(in.Summary),
		Pros:           strings.TrimSpace(in.Pros),
		Cons:           strings.TrimSpace(in.Cons),
		RecordedAt:     s.opts.Now(),
		RecordedBy:     who.ID,
		RecordedByName: displayName(who, match.Member),
	}
	updated, err := s.motions.SetDecision(ctx, motion.ID, record)
	if err != nil {
		return nil, notFound(err, "motion")
	}
	s.opts.Metrics.DecisionRecorded(string(record.Outcome))
	s.opts.Logger.Info("decision recorded", "motion", motion.ID.Hex(), "outcome", record.Outcome, "previous", motion.Status)
	s.publish(ctx, committee.ID, EventDecisionRecorded, record)
	return PresentMotion(updated, committee.EffectiveSettings()), nil
}

// ListMotions returns the committee's motions, newest first.
func (s *MotionService) ListMotions(ctx context.Context, committeeID primitive.ObjectID, who models.Identity) ([]models.Motion, error) {
	committee, err := s.visibleCommittee(ctx, committeeID, who)
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
	return motions, nil
}

// GetMotion returns one motion with its summary.
func (s *MotionService) GetMotion(ctx context.Context, motionID primitive.ObjectID, who models.Identity) (*MotionView, error) {
	if !who.Authenticated() {
		return nil, ErrAccessDenied
	}
	motion, err := s.motions.FindMotion(ctx, motionID)
	if err != nil {
		return nil, notFound(err, "motion")
	}
	committee, err := s.visibleCommittee(ctx, motion.CommitteeID, who)
	if err != nil {
		return nil, err
	}
	settings := committee.EffectiveSettings()
	return &MotionView{
		Motion:  PresentMotion(motion, settings),
		Summary: Summarize(motion, settings),
	}, nil
}

// TallyVotes counts ballots by choice.
func TallyVotes(motion *models.Motion) Tally {
	var t Tally
	for _, v := range motion.Votes {
		switch v.Choice {
		case models.ChoiceSupport:
			t.Support++
		case models.ChoiceAgainst:
			t.Against++
		case models.ChoiceAbstain:
			t.Abstain++
		}
	}
	t.Total = len(motion.Votes)
	return t
}

// Summarize derives the tally and the speaker count. ReadyForVote only
// advises the chair.
func Summarize(motion *models.Motion, settings models.CommitteeSettings) MotionSummary {
	speakers := make(map[primitive.ObjectID]struct{})
	for _, entry := range motion.Discussion {
		speakers[entry.AuthorID] = struct{}{}
	}
	return MotionSummary{
		Tally:        TallyVotes(motion),
		Speakers:     len(speakers),
		MinSpeakers:  settings.MinSpeakersBeforeVote,
		ReadyForVote: len(speakers) >= settings.MinSpeakersBeforeVote,
	}
}

// PresentMotion strips voter names and emails when the committee does not
// record names in votes. The stored motion is not modified.
func PresentMotion(motion *models.Motion, settings models.CommitteeSettings) *models.Motion {
	out := *motion
	if settings.RecordNamesInVotes || len(motion.Votes) == 0 {
		return &out
	}
	out.Votes = make([]models.Vote, len(motion.Votes))
	for i, v := range motion.Votes {
		v.VoterName = ""
		v.VoterEmail = ""
		out.Votes[i] = v
	}
	return &out
}

func displayName(who models.Identity, member *models.Member) string {
	if name := strings.TrimSpace(who.Name); name != "" {
		return name
	}
	if member != nil && member.Name != "" {
		return member.Name
	}
	return who.Email
}
