package services

import (
	"context"
	"sync"
	"testing"

	"committeehub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBudgetScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga Owner", "olga@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	carol := f.register(t, "Carol", "carol@example.com")

	committee := f.committee(t, owner)
	require.Len(t, committee.Members, 1)
	assert.Equal(t, models.RoleOwner, committee.Members[0].Role)

	committee, err := f.committees.AddMember(ctx, committee.ID, owner, MemberInput{
		Name: "Bob", Email: "bob@example.com", Role: models.RoleMember,
		Permissions: []models.Permission{models.PermVote},
	})
	require.NoError(t, err)
	committee, err = f.committees.AddMember(ctx, committee.ID, owner, MemberInput{Email: "carol@example.com"})
	require.NoError(t, err)
	require.Len(t, committee.Members, 3)
	assert.Equal(t, bob.ID, *memberByEmail(t, committee, "bob@example.com").UserID)

	_, err = f.motions.CreateMotion(ctx, committee.ID, bob, MotionInput{Title: "Bob's idea"})
	require.ErrorIs(t, err, ErrPermissionDenied)

	motion, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Cut costs", Type: models.MotionStandard})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, motion.Status)

	voted, err := f.motions.CastVote(ctx, motion.ID, bob, VoteInput{Choice: models.ChoiceSupport})
	require.NoError(t, err)
	require.Len(t, voted.Votes, 1)
	assert.Equal(t, bob.ID, voted.Votes[0].VoterID)

	decided, err := f.motions.RecordDecision(ctx, motion.ID, owner, DecisionInput{Outcome: models.StatusPassed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPassed, decided.Status)

	overturn, err := f.motions.CreateOverturn(ctx, motion.ID, bob, OverturnInput{})
	require.NoError(t, err)
	assert.Equal(t, models.VariantOverturn, overturn.VariantOf)
	assert.Equal(t, models.MotionSpecial, overturn.Type)
	assert.Equal(t, DefaultOverturnTitle, overturn.Title)
	assert.Equal(t, models.StatusPending, overturn.Status)
	require.NotNil(t, overturn.ParentMotionID)
	assert.Equal(t, motion.ID, *overturn.ParentMotionID)

	_, err = f.motions.CreateOverturn(ctx, motion.ID, carol, OverturnInput{})
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestCreateMotionDeniedStoresNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	viewer := f.register(t, "Vic", "vic@example.com")
	committee := f.committee(t, owner, MemberInput{Email: "vic@example.com", Role: models.RoleObserver, Permissions: []models.Permission{models.PermDiscussion}})

	_, err := f.motions.CreateMotion(ctx, committee.ID, viewer, MotionInput{Title: "Nope"})
	require.ErrorIs(t, err, ErrPermissionDenied)

	motions, err := f.motions.ListMotions(ctx, committee.ID, owner)
	require.NoError(t, err)
	assert.Empty(t, motions)
}

func TestAccessErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	stranger := f.register(t, "Sam", "sam@example.com")
	committee := f.committee(t, owner)

	_, err := f.motions.CreateMotion(ctx, committee.ID, models.Identity{}, MotionInput{Title: "x"})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.motions.CreateMotion(ctx, committee.ID, stranger, MotionInput{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.motions.CreateMotion(ctx, primitive.NewObjectID(), owner, MotionInput{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.motions.GetMotion(ctx, primitive.NewObjectID(), owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatorWithoutSeatIsDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	heir := f.register(t, "Hana", "hana@example.com")
	committee := f.committee(t, owner, MemberInput{Email: "hana@example.com", Role: models.RoleChair})

	heirSeat := memberByEmail(t, committee, "hana@example.com")
	_, err := f.committees.TransferOwnership(ctx, committee.ID, owner, heirSeat.ID.Hex())
	require.NoError(t, err)
	ownerSeat := memberByEmail(t, committee, "olga@example.com")
	_, err = f.committees.RemoveMember(ctx, committee.ID, heir, ownerSeat.ID.Hex())
	require.NoError(t, err)

	// still visible as creator, but no seat to act from
	_, err = f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "x"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.motions.ListMotions(ctx, committee.ID, owner)
	assert.NoError(t, err)
}

func TestCreateMotionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	committee := f.committee(t, owner)
	other := f.committee(t, owner)
	foreign, err := f.motions.CreateMotion(ctx, other.ID, owner, MotionInput{Title: "elsewhere"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input MotionInput
	}{
		{"blank title", MotionInput{Title: "   "}},
		{"unknown type", MotionInput{Title: "x", Type: "emergency"}},
		{"unknown variant", MotionInput{Title: "x", VariantOf: "repeal"}},
		{"variant without parent", MotionInput{Title: "x", VariantOf: models.VariantAmendment}},
		{"overturn through create", MotionInput{Title: "x", VariantOf: models.VariantOverturn, ParentMotionID: foreign.ID.Hex()}},
		{"bad parent id", MotionInput{Title: "x", ParentMotionID: "zzz"}},
		{"parent in another committee", MotionInput{Title: "x", ParentMotionID: foreign.ID.Hex()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.motions.CreateMotion(ctx, committee.ID, owner, tt.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSubMotionDefaultsToRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	committee := f.committee(t, owner)
	parent, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Base"})
	require.NoError(t, err)

	sub, err := f.motions.CreateSubMotion(ctx, parent.ID, owner, MotionInput{Title: "Tweak"})
	require.NoError(t, err)
	assert.Equal(t, models.VariantRevision, sub.VariantOf)
	assert.Equal(t, committee.ID, sub.CommitteeID)
	assert.Equal(t, parent.ID, *sub.ParentMotionID)

	amend, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Amend", ParentMotionID: parent.ID.Hex(), VariantOf: models.VariantAmendment})
	require.NoError(t, err)
	assert.Equal(t, models.VariantAmendment, amend.VariantOf)

	_, err = f.motions.CreateSubMotion(ctx, parent.ID, owner, MotionInput{Title: "x", VariantOf: models.VariantOverturn})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSpecialMotionGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	committee := f.committee(t, owner)

	_, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Special", Type: models.MotionSpecial})
	require.NoError(t, err)

	_, err = f.committees.UpdateSettings(ctx, committee.ID, owner, SettingsPatch{AllowSpecialMotions: boolPtr(false)})
	require.NoError(t, err)
	_, err = f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Special", Type: models.MotionSpecial})
	require.ErrorIs(t, err, ErrSpecialMotionsDisabled)
	_, err = f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Plain", Type: models.MotionProcedure})
	require.NoError(t, err)

	_, err = f.committees.UpdateSettings(ctx, committee.ID, owner, SettingsPatch{AllowSpecialMotions: boolPtr(true)})
	require.NoError(t, err)
	_, err = f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Special again", Type: models.MotionSpecial})
	require.NoError(t, err)
}

func TestOverturnGateAndEligibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	committee := f.committee(t, owner, MemberInput{Email: "bob@example.com"})
	motion, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)

	_, err = f.motions.CastVote(ctx, motion.ID, bob, VoteInput{Choice: models.ChoiceAgainst})
	require.NoError(t, err)
	_, err = f.motions.CreateOverturn(ctx, motion.ID, bob, OverturnInput{Title: "Redo"})
	require.ErrorIs(t, err, ErrNotEligible)

	_, err = f.motions.CastVote(ctx, motion.ID, bob, VoteInput{Choice: models.ChoiceSupport})
	require.NoError(t, err)
	_, err = f.committees.UpdateSettings(ctx, committee.ID, owner, SettingsPatch{AllowSpecialMotions: boolPtr(false)})
	require.NoError(t, err)
	_, err = f.motions.CreateOverturn(ctx, motion.ID, bob, OverturnInput{Title: "Redo"})
	require.ErrorIs(t, err, ErrSpecialMotionsDisabled)

	_, err = f.committees.UpdateSettings(ctx, committee.ID, owner, SettingsPatch{AllowSpecialMotions: boolPtr(true)})
	require.NoError(t, err)
	overturn, err := f.motions.CreateOverturn(ctx, motion.ID, bob, OverturnInput{Title: "Redo"})
	require.NoError(t, err)
	assert.Equal(t, "Redo", overturn.Title)
}

func TestVoteUpsertKeepsLastChoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	committee := f.committee(t, owner)
	motion, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)

	choices := []models.VoteChoice{models.ChoiceSupport, models.ChoiceAgainst, models.ChoiceAbstain, models.ChoiceAgainst}
	for _, choice := range choices {
		_, err := f.motions.CastVote(ctx, motion.ID, owner, VoteInput{Choice: choice})
		require.NoError(t, err)
	}

	view, err := f.motions.GetMotion(ctx, motion.ID, owner)
	require.NoError(t, err)
	require.Len(t, view.Motion.Votes, 1)
	assert.Equal(t, models.ChoiceAgainst, view.Motion.Votes[0].Choice)
	assert.Equal(t, models.StatusPending, view.Motion.Status)
	assert.Equal(t, Tally{Against: 1, Total: 1}, view.Summary.Tally)
}

func TestVoteDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	committee := f.committee(t, owner)
	motion, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)

	voted, err := f.motions.CastVote(ctx, motion.ID, owner, VoteInput{})
	require.NoError(t, err)
	assert.Equal(t, models.ChoiceSupport, voted.Votes[0].Choice)

	_, err = f.motions.CastVote(ctx, motion.ID, owner, VoteInput{Choice: "maybe"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConcurrentVotersAreAllKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")

	const voters = 20
	inputs := make([]MemberInput, 0, voters)
	identities := make([]models.Identity, 0, voters)
	for i := 0; i < voters; i++ {
		email := "voter" + string(rune('a'+i)) + "@example.com"
		identities = append(identities, f.register(t, "Voter", email))
		inputs = append(inputs, MemberInput{Email: email})
	}
	committee := f.committee(t, owner, inputs...)
	motion, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for _, who := range identities {
		wg.Add(1)
		go func(who models.Identity) {
			defer wg.Done()
			for _, choice := range []models.VoteChoice{models.ChoiceAgainst, models.ChoiceSupport} {
				if _, err := f.motions.CastVote(ctx, motion.ID, who, VoteInput{Choice: choice}); err != nil {
					errs <- err
				}
			}
		}(who)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	view, err := f.motions.GetMotion(ctx, motion.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, Tally{Support: voters, Total: voters}, view.Summary.Tally)
}

func TestDecisionRoundTripAndReplacement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	chair := f.register(t, "Chen", "chen@example.com")
	member := f.register(t, "Mo", "mo@example.com")
	committee := f.committee(t, owner,
		MemberInput{Email: "chen@example.com", Role: models.RoleChair},
		MemberInput{Email: "mo@example.com", Permissions: []models.Permission{models.PermRecordDecision}},
	)
	motion, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)

	first, err := f.motions.RecordDecision(ctx, motion.ID, owner, DecisionInput{
		Outcome: models.StatusPassed, Summary: "Approved", Pros: "cheaper", Cons: "slower",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPassed, first.Status)
	assert.Equal(t, "Approved", first.DecisionRecord.Summary)
	assert.Equal(t, owner.ID, first.DecisionRecord.RecordedBy)

	second, err := f.motions.RecordDecision(ctx, motion.ID, chair, DecisionInput{Outcome: models.StatusPostponed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPostponed, second.Status)
	assert.Equal(t, models.DecisionRecord{
		Outcome:        models.StatusPostponed,
		RecordedAt:     second.DecisionRecord.RecordedAt,
		RecordedBy:     chair.ID,
		RecordedByName: "Chen",
	}, *second.DecisionRecord)

	_, err = f.motions.RecordDecision(ctx, motion.ID, member, DecisionInput{Outcome: models.StatusFailed})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	for _, outcome := range []models.MotionStatus{"", models.StatusPending, "adjourned"} {
		_, err = f.motions.RecordDecision(ctx, motion.ID, owner, DecisionInput{Outcome: outcome})
		assert.ErrorIs(t, err, ErrValidation, outcome)
	}
}

func TestDiscussionAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	f.register(t, "Mute", "mute@example.com")
	committee := f.committee(t, owner,
		MemberInput{Email: "bob@example.com"},
		MemberInput{Email: "mute@example.com", Permissions: []models.Permission{models.PermVote}},
	)
	motion, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)

	_, err = f.motions.AddDiscussion(ctx, motion.ID, bob, DiscussionInput{Content: "  "})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.motions.AddDiscussion(ctx, motion.ID, bob, DiscussionInput{Content: "x", Stance: "sideways"})
	require.ErrorIs(t, err, ErrValidation)

	updated, err := f.motions.AddDiscussion(ctx, motion.ID, bob, DiscussionInput{Content: "Too deep"})
	require.NoError(t, err)
	assert.Equal(t, models.StanceNeutral, updated.Discussion[0].Stance)
	assert.Equal(t, "Bob", updated.Discussion[0].AuthorName)

	view, err := f.motions.GetMotion(ctx, motion.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Summary.Speakers)
	assert.False(t, view.Summary.ReadyForVote)

	_, err = f.motions.AddDiscussion(ctx, motion.ID, bob, DiscussionInput{Content: "Again", Stance: models.StanceCon})
	require.NoError(t, err)
	_, err = f.motions.AddDiscussion(ctx, motion.ID, owner, DiscussionInput{Content: "Needed", Stance: models.StancePro})
	require.NoError(t, err)

	view, err = f.motions.GetMotion(ctx, motion.ID, owner)
	require.NoError(t, err)
	assert.Len(t, view.Motion.Discussion, 3)
	assert.Equal(t, 2, view.Summary.Speakers)
	assert.True(t, view.Summary.ReadyForVote)

	mute := models.Identity{ID: *memberByEmail(t, committee, "mute@example.com").UserID, Name: "Mute", Email: "mute@example.com"}
	_, err = f.motions.AddDiscussion(ctx, motion.ID, mute, DiscussionInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestVoterNamesFollowSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	committee := f.committee(t, owner)
	motion, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)

	voted, err := f.motions.CastVote(ctx, motion.ID, owner, VoteInput{Choice: models.ChoiceSupport})
	require.NoError(t, err)
	assert.Empty(t, voted.Votes[0].VoterName)
	assert.Empty(t, voted.Votes[0].VoterEmail)
	assert.Equal(t, owner.ID, voted.Votes[0].VoterID)

	stored, err := f.store.FindMotion(ctx, motion.ID)
	require.NoError(t, err)
	assert.Equal(t, "Olga", stored.Votes[0].VoterName)

	_, err = f.committees.UpdateSettings(ctx, committee.ID, owner, SettingsPatch{RecordNamesInVotes: boolPtr(true)})
	require.NoError(t, err)
	view, err := f.motions.GetMotion(ctx, motion.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Olga", view.Motion.Votes[0].VoterName)
}

func TestListMotionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	committee := f.committee(t, owner)
	for _, title := range []string{"first", "second", "third"} {
		_, err := f.motions.CreateMotion(ctx, committee.ID, owner, MotionInput{Title: title})
		require.NoError(t, err)
	}

	motions, err := f.motions.ListMotions(ctx, committee.ID, owner)
	require.NoError(t, err)
	require.Len(t, motions, 3)
	assert.Equal(t, "third", motions[0].Title)
	assert.Equal(t, "first", motions[2].Title)
}
