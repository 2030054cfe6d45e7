package services

import (
	"context"
	"log/slog"
	"time"

	"committeehub/internal/live"
	"committeehub/internal/metrics"
	"committeehub/internal/storage"
	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity kinds published for committee observers
const (
	EventCommitteeCreated = "committee.created"
	EventCommitteeDeleted = "committee.deleted"
	EventSettingsUpdated  = "committee.settings"
	EventMembersChanged   = "committee.members"
	EventHandRaised       = "hand.raised"
	EventHandLowered      = "hand.lowered"
	EventMotionCreated    = "motion.created"
	EventDiscussionAdded  = "motion.discussion"
	EventVoteCast         = "motion.vote"
	EventDecisionRecorded = "motion.decision"
)

// EventPublisher fans committee activity out to observers.
type EventPublisher interface {
	Publish(ctx context.Context, committeeID primitive.ObjectID, kind string, payload any) error
}

// HandRaiseLimiter throttles how often one user can join a speaker queue.
type HandRaiseLimiter interface {
	Allow(ctx context.Context, committeeID, userID primitive.ObjectID) (bool, error)
}

// ActivityFeed reads back recent committee activity.
type ActivityFeed interface {
	Recent(ctx context.Context, committeeID primitive.ObjectID, count int64) ([]*live.Event, error)
}

// Options carries the optional collaborators shared by the services. Every
// field may be left zero.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Events  EventPublisher
	Limiter HandRaiseLimiter
	Feed    ActivityFeed
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// access is the shared entry check: authenticated, committee visible, caller
// holds a member record.
type access struct {
	committees storage.CommitteeStore
	opts       Options
}

func (a access) visibleCommittee(ctx context.Context, id primitive.ObjectID, who models.Identity) (*models.Committee, error) {
	if !who.Authenticated() {
		return nil, ErrAccessDenied
	}
	committee, err := a.committees.FindVisibleCommittee(ctx, id, who)
	if err != nil {
		return nil, notFound(err, "committee")
	}
	return committee, nil
}

func (a access) member(ctx context.Context, id primitive.ObjectID, who models.Identity) (*models.Committee, MemberMatch, error) {
	committee, err := a.visibleCommittee(ctx, id, who)
	if err != nil {
		return nil, MemberMatch{}, err
	}
	match, ok := ResolveMember(committee.Members, who)
	if !ok {
		return nil, MemberMatch{}, deniedf("not a member of this committee")
	}
	return committee, match, nil
}

func (a access) deny(action models.Permission, format string, args ...any) error {
	a.opts.Metrics.PermissionDenied(string(action))
	return deniedf(format, args...)
}

func (a access) publish(ctx context.Context, committeeID primitive.ObjectID, kind string, payload any) {
	if a.opts.Events == nil {
		return
	}
	if err := a.opts.Events.Publish(ctx, committeeID, kind, payload); err != nil {
		a.opts.Logger.Warn("failed to publish activity", "kind", kind, "committee", committeeID.Hex(), "error", err)
	}
}
