package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"committeehub/internal/live"
	"committeehub/internal/metrics"
	"committeehub/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingPublisher struct {
	mu    sync.Mutex
	kinds []string
}

func (p *recordingPublisher) Publish(_ context.Context, _ primitive.ObjectID, kind string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	return nil
}

type countingLimiter struct {
	limit int
	seen  map[primitive.ObjectID]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, _, userID primitive.ObjectID) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.seen[userID]++
	return l.seen[userID] <= l.limit, nil
}

type staticFeed []*live.Event

func (f staticFeed) Recent(context.Context, primitive.ObjectID, int64) ([]*live.Event, error) {
	return f, nil
}

func TestCreateCommitteeDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")

	c, err := f.committees.CreateCommittee(ctx, owner, CommitteeInput{
		Name: "  Budget ",
		Members: []MemberInput{
			{Name: "Walk-in"},
			{Email: "Guest@Example.com", Role: models.RoleObserver, Permissions: []models.Permission{}},
		},
		Settings: SettingsPatch{MinSpeakersBeforeVote: "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Budget", c.Name)
	assert.Equal(t, owner.ID, c.CreatedBy)
	require.Len(t, c.Members, 3)
	assert.Equal(t, 1, CountOwners(c.Members))
	assert.Equal(t, models.RoleOwner, c.Members[0].Role)

	walkIn := c.Members[1]
	assert.Equal(t, models.RoleMember, walkIn.Role)
	assert.Nil(t, walkIn.UserID)
	assert.Equal(t, DefaultPermissions, walkIn.Permissions)

	guest := c.Members[2]
	assert.Equal(t, "guest@example.com", guest.Email)
	assert.Equal(t, "guest", guest.Name)
	assert.Equal(t, DefaultPermissions, guest.Permissions)

	want := models.DefaultSettings()
	want.MinSpeakersBeforeVote = 3
	assert.Equal(t, want, *c.Settings)
}

func TestCreateCommitteeValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")

	tests := []struct {
		name  string
		input CommitteeInput
		err   error
	}{
		{"missing name", CommitteeInput{Name: " "}, ErrValidation},
		{"member without name or email", CommitteeInput{Name: "x", Members: []MemberInput{{}}}, ErrValidation},
		{"bad email", CommitteeInput{Name: "x", Members: []MemberInput{{Email: "not-an-email"}}}, ErrValidation},
		{"bad role", CommitteeInput{Name: "x", Members: []MemberInput{{Name: "a", Role: "king"}}}, ErrValidation},
		{"bad permission", CommitteeInput{Name: "x", Members: []MemberInput{{Name: "a", Permissions: []models.Permission{"veto"}}}}, ErrValidation},
		{"duplicate email", CommitteeInput{Name: "x", Members: []MemberInput{{Email: "a@example.com"}, {Email: "A@example.com"}}}, ErrValidation},
		{"unknown user", CommitteeInput{Name: "x", Members: []MemberInput{{UserID: primitive.NewObjectID().Hex()}}}, ErrValidation},
		{"two owners", CommitteeInput{Name: "x", Members: []MemberInput{{Name: "a", Role: models.RoleOwner}, {Name: "b", Role: models.RoleOwner}}}, ErrDuplicateOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.committees.CreateCommittee(ctx, owner, tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := f.committees.CreateCommittee(ctx, models.Identity{}, CommitteeInput{Name: "x"})
	assert.ErrorIs(t, err, ErrAccessDenied)

	list, err := f.committees.ListCommittees(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// An invitee who only shares the creator's display name keeps their own seat.
func TestCreateCommitteeNamesakeInviteeIsNotOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.register(t, "Alice", "alice@a.com")

	c, err := f.committees.CreateCommittee(ctx, creator, CommitteeInput{
		Name: "Budget",
		Members: []MemberInput{
			{Name: "alice", Email: "alice.smith@other.com", Permissions: []models.Permission{models.PermVote}},
		},
	})
	require.NoError(t, err)
	require.Len(t, c.Members, 2)
	assert.Equal(t, 1, CountOwners(c.Members))

	mine := memberByEmail(t, c, "alice@a.com")
	assert.Equal(t, models.RoleOwner, mine.Role)
	require.NotNil(t, mine.UserID)
	assert.Equal(t, creator.ID, *mine.UserID)
	assert.Equal(t, DefaultPermissions, mine.Permissions)

	namesake := memberByEmail(t, c, "alice.smith@other.com")
	assert.Equal(t, models.RoleMember, namesake.Role)
	assert.Nil(t, namesake.UserID)
	assert.Equal(t, []models.Permission{models.PermVote}, namesake.Permissions)

	invitee := f.register(t, "Alice Smith", "alice.smith@other.com")
	detail, err := f.committees.GetCommittee(ctx, c.ID, invitee)
	require.NoError(t, err)
	require.NotNil(t, detail.Me)
	assert.Equal(t, models.RoleMember, detail.Me.Role)
	assert.Equal(t, []models.Permission{models.PermVote}, detail.Abilities)

	detail, err = f.committees.GetCommittee(ctx, c.ID, creator)
	require.NoError(t, err)
	require.NotNil(t, detail.Me)
	assert.Equal(t, models.RoleOwner, detail.Me.Role)
}

func TestCreateCommitteeWithSuppliedOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.register(t, "Olga", "olga@example.com")
	f.register(t, "Pat", "pat@example.com")

	c, err := f.committees.CreateCommittee(ctx, creator, CommitteeInput{
		Name:    "Delegated",
		Members: []MemberInput{{Email: "pat@example.com", Role: models.RoleOwner}},
	})
	require.NoError(t, err)
	require.Len(t, c.Members, 1)
	assert.Equal(t, "pat@example.com", c.Members[0].Email)

	// the creator still sees it, without a seat
	detail, err := f.committees.GetCommittee(ctx, c.ID, creator)
	require.NoError(t, err)
	assert.Nil(t, detail.Me)
	assert.Empty(t, detail.Abilities)
}

func TestMembershipEditsKeepSingleOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	chair := f.register(t, "Chen", "chen@example.com")
	c := f.committee(t, owner, MemberInput{Email: "chen@example.com", Role: models.RoleChair})
	ownerSeat := memberByEmail(t, c, "olga@example.com")
	chairSeat := memberByEmail(t, c, "chen@example.com")

	_, err := f.committees.AddMember(ctx, c.ID, owner, MemberInput{Name: "Usurper", Role: models.RoleOwner})
	assert.ErrorIs(t, err, ErrDuplicateOwner)

	ownerRole := models.RoleOwner
	_, err = f.committees.UpdateMember(ctx, c.ID, chair, chairSeat.ID.Hex(), MemberUpdate{Role: &ownerRole})
	assert.ErrorIs(t, err, ErrDuplicateOwner)

	memberRole := models.RoleMember
	_, err = f.committees.UpdateMember(ctx, c.ID, owner, ownerSeat.ID.Hex(), MemberUpdate{Role: &memberRole})
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = f.committees.RemoveMember(ctx, c.ID, chair, ownerSeat.ID.Hex())
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = f.committees.UpdateMember(ctx, c.ID, owner, primitive.NewObjectID().Hex(), MemberUpdate{Role: &memberRole})
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := f.store.FindVisibleCommittee(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, CountOwners(stored.Members))
	assert.Equal(t, c.Version, stored.Version)
}

func TestMemberManagement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	c := f.committee(t, owner)

	c, err := f.committees.AddMember(ctx, c.ID, owner, MemberInput{UserID: bob.ID.Hex()})
	require.NoError(t, err)
	bobSeat := memberByEmail(t, c, "bob@example.com")
	assert.Equal(t, "Bob", bobSeat.Name)
	assert.Equal(t, int64(1), c.Version)

	_, err = f.committees.AddMember(ctx, c.ID, owner, MemberInput{Email: "BOB@example.com"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.committees.AddMember(ctx, c.ID, bob, MemberInput{Name: "Friend"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	c, err = f.committees.UpdateMember(ctx, c.ID, owner, bobSeat.ID.Hex(), MemberUpdate{Permissions: []models.Permission{}})
	require.NoError(t, err)
	bobSeat = memberByEmail(t, c, "bob@example.com")
	assert.NotNil(t, bobSeat.Permissions)
	assert.Empty(t, bobSeat.Permissions)

	c, err = f.committees.UpdateMember(ctx, c.ID, owner, bobSeat.ID.Hex(), MemberUpdate{})
	require.NoError(t, err)
	assert.Empty(t, memberByEmail(t, c, "bob@example.com").Permissions)

	_, err = f.motions.CreateMotion(ctx, c.ID, bob, MotionInput{Title: "x"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	c, err = f.committees.RemoveMember(ctx, c.ID, owner, bobSeat.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, c.Members, 1)

	_, err = f.committees.GetCommittee(ctx, c.ID, bob)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	chair := f.register(t, "Chen", "chen@example.com")
	c := f.committee(t, owner,
		MemberInput{Email: "chen@example.com", Role: models.RoleChair},
		MemberInput{Name: "Invitee"},
	)
	chairSeat := memberByEmail(t, c, "chen@example.com")
	ownerSeat := memberByEmail(t, c, "olga@example.com")

	_, err := f.committees.TransferOwnership(ctx, c.ID, chair, chairSeat.ID.Hex())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.committees.TransferOwnership(ctx, c.ID, owner, c.Members[2].ID.Hex())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.committees.TransferOwnership(ctx, c.ID, owner, ownerSeat.ID.Hex())
	assert.ErrorIs(t, err, ErrValidation)

	c, err = f.committees.TransferOwnership(ctx, c.ID, owner, chairSeat.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, memberByEmail(t, c, "chen@example.com").Role)
	assert.Equal(t, models.RoleChair, memberByEmail(t, c, "olga@example.com").Role)

	err = f.committees.DeleteCommittee(ctx, c.ID, owner)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSettingsRequireModerator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	c := f.committee(t, owner, MemberInput{Email: "bob@example.com"})

	_, err := f.committees.UpdateSettings(ctx, c.ID, bob, SettingsPatch{OfflineMode: boolPtr(false)})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	updated, err := f.committees.UpdateSettings(ctx, c.ID, owner, SettingsPatch{MinSpeakersBeforeVote: -1})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Settings.MinSpeakersBeforeVote)
	assert.True(t, updated.Settings.OfflineMode)
}

func TestHandRaiseQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	carol := f.register(t, "Carol", "carol@example.com")
	c := f.committee(t, owner, MemberInput{Email: "bob@example.com"}, MemberInput{Email: "carol@example.com"})

	c, err := f.committees.RaiseHand(ctx, c.ID, bob, HandInput{Stance: models.StancePro, Note: "first"})
	require.NoError(t, err)
	require.Len(t, c.HandRaises, 1)
	bobHand := c.HandRaises[0].ID

	c, err = f.committees.RaiseHand(ctx, c.ID, bob, HandInput{Stance: models.StanceCon, Note: "changed my mind"})
	require.NoError(t, err)
	require.Len(t, c.HandRaises, 1)
	assert.Equal(t, bobHand, c.HandRaises[0].ID)
	assert.Equal(t, models.StanceCon, c.HandRaises[0].Stance)

	c, err = f.committees.RaiseHand(ctx, c.ID, carol, HandInput{})
	require.NoError(t, err)
	require.Len(t, c.HandRaises, 2)
	assert.Equal(t, models.StanceNeutral, c.HandRaises[1].Stance)

	_, err = f.committees.RaiseHand(ctx, c.ID, carol, HandInput{Stance: "loud"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.committees.LowerHand(ctx, c.ID, carol, bobHand)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	c, err = f.committees.LowerHand(ctx, c.ID, bob, bobHand)
	require.NoError(t, err)
	require.Len(t, c.HandRaises, 1)

	c, err = f.committees.LowerHand(ctx, c.ID, owner, c.HandRaises[0].ID)
	require.NoError(t, err)
	assert.Empty(t, c.HandRaises)

	_, err = f.committees.LowerHand(ctx, c.ID, owner, bobHand)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLowerHandDenialIsCountedAsModeration(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	f := newFixture(t, func(o *Options) { o.Metrics = metrics.New(registry) })
	owner := f.register(t, "Olga", "olga@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	carol := f.register(t, "Carol", "carol@example.com")
	c := f.committee(t, owner, MemberInput{Email: "bob@example.com"}, MemberInput{Email: "carol@example.com"})

	c, err := f.committees.RaiseHand(ctx, c.ID, bob, HandInput{})
	require.NoError(t, err)
	_, err = f.committees.LowerHand(ctx, c.ID, carol, c.HandRaises[0].ID)
	require.ErrorIs(t, err, ErrPermissionDenied)

	expected := `
# HELP committeehub_permission_denials_total Operations refused by the permission model, by action
# TYPE committeehub_permission_denials_total counter
committeehub_permission_denials_total{action="moderateHands"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "committeehub_permission_denials_total"))
}

func TestAbilitiesFollowRolePolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	carol := f.register(t, "Carol", "carol@example.com")
	c := f.committee(t, owner, MemberInput{
		Email: "carol@example.com", Role: models.RoleChair,
		Permissions: []models.Permission{models.PermDiscussion},
	})

	removed, err := f.policy.enforcer.RemovePolicy(string(models.RoleChair), policyObject, string(models.PermVote))
	require.NoError(t, err)
	require.True(t, removed)

	detail, err := f.committees.GetCommittee(ctx, c.ID, carol)
	require.NoError(t, err)
	require.NotNil(t, detail.Me)
	assert.Equal(t, models.RoleChair, detail.Me.Role)
	assert.NotContains(t, detail.Abilities, models.PermVote)
	assert.Contains(t, detail.Abilities, models.PermDiscussion)
	assert.Contains(t, detail.Abilities, models.PermRecordDecision)

	motion, err := f.motions.CreateMotion(ctx, c.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)
	_, err = f.motions.CastVote(ctx, motion.ID, carol, VoteInput{Choice: models.ChoiceSupport})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestHandRaiseRateLimit(t *testing.T) {
	ctx := context.Background()
	limiter := &countingLimiter{limit: 2, seen: map[primitive.ObjectID]int{}}
	f := newFixture(t, func(o *Options) { o.Limiter = limiter })
	owner := f.register(t, "Olga", "olga@example.com")
	c := f.committee(t, owner)

	for i := 0; i < 2; i++ {
		_, err := f.committees.RaiseHand(ctx, c.ID, owner, HandInput{})
		require.NoError(t, err)
	}
	_, err := f.committees.RaiseHand(ctx, c.ID, owner, HandInput{})
	assert.ErrorIs(t, err, ErrRateLimited)

	limiter.err = errors.New("redis down")
	_, err = f.committees.RaiseHand(ctx, c.ID, owner, HandInput{})
	assert.NoError(t, err)
}

func TestDeleteCommitteeCascades(t *testing.T) {
	ctx := context.Background()
	publisher := &recordingPublisher{}
	f := newFixture(t, func(o *Options) { o.Events = publisher })
	owner := f.register(t, "Olga", "olga@example.com")
	chair := f.register(t, "Chen", "chen@example.com")
	c := f.committee(t, owner, MemberInput{Email: "chen@example.com", Role: models.RoleChair})
	keep := f.committee(t, owner)

	motion, err := f.motions.CreateMotion(ctx, c.ID, owner, MotionInput{Title: "doomed"})
	require.NoError(t, err)
	kept, err := f.motions.CreateMotion(ctx, keep.ID, owner, MotionInput{Title: "safe"})
	require.NoError(t, err)

	err = f.committees.DeleteCommittee(ctx, c.ID, chair)
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, f.committees.DeleteCommittee(ctx, c.ID, owner))

	_, err = f.committees.GetCommittee(ctx, c.ID, owner)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.store.FindMotion(ctx, motion.ID)
	assert.Error(t, err)
	_, err = f.store.FindMotion(ctx, kept.ID)
	assert.NoError(t, err)

	assert.Contains(t, publisher.kinds, EventMotionCreated)
	assert.Contains(t, publisher.kinds, EventCommitteeDeleted)
}

func TestListAndDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	first := f.committee(t, owner)
	second := f.committee(t, owner, MemberInput{Email: "bob@example.com", Permissions: []models.Permission{models.PermVote}})

	list, err := f.committees.ListCommittees(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = f.committees.ListCommittees(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.motions.CreateMotion(ctx, second.ID, owner, MotionInput{Title: "Cut costs"})
	require.NoError(t, err)
	detail, err := f.committees.GetCommittee(ctx, second.ID, bob)
	require.NoError(t, err)
	assert.Len(t, detail.Motions, 1)
	require.NotNil(t, detail.Me)
	assert.Equal(t, []models.Permission{models.PermVote}, detail.Abilities)
}

func TestActivityFeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "Olga", "olga@example.com")
	c := f.committee(t, owner)

	events, err := f.committees.Activity(ctx, c.ID, owner, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	feed := staticFeed{{ID: "1", Type: EventMotionCreated}}
	f = newFixture(t, func(o *Options) { o.Feed = feed })
	owner = f.register(t, "Olga", "olga@example.com")
	c = f.committee(t, owner)
	events, err = f.committees.Activity(ctx, c.ID, owner, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = f.committees.Activity(ctx, c.ID, models.Identity{}, 10)
	assert.ErrorIs(t, err, ErrAccessDenied)
}
