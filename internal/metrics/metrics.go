// Package metrics exposes the committee rule engine counters. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	motionsCreated    *prometheus.CounterVec
	discussionEntries prometheus.Counter
	votesCast         *prometheus.CounterVec
	decisionsRecorded *prometheus.CounterVec
	permissionDenials *prometheus.CounterVec
	membershipWrites  *prometheus.CounterVec
	membershipRetries prometheus.Counter
	handRaises        prometheus.Counter
	handRaisesLimited prometheus.Counter
	committeesCreated prometheus.Counter
	committeesDeleted prometheus.Counter
}

// New registers the counters with registry. A nil registry returns nil.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		return nil
	}
	factory := promauto.With(registry)
	return &Metrics{
		motionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "committeehub_motions_created_total",
			Help: "Motions created, by motion type and variant",
		}, []string{"type", "variant"}),
		discussionEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "committeehub_discussion_entries_total",
			Help: "Discussion entries appended to motions",
		}),
		votesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "committeehub_votes_cast_total",
			Help: "Ballots written, including replacements, by choice",
		}, []string{"choice"}),
		decisionsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "committeehub_decisions_recorded_total",
			Help: "Decision records written, by outcome",
		}, []string{"outcome"}),
		permissionDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "committeehub_permission_denials_total",
			Help: "Operations refused by the permission model, by action",
		}, []string{"action"}),
		membershipWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "committeehub_membership_writes_total",
			Help: "Committed member list changes, by operation",
		}, []string{"op"}),
		membershipRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "committeehub_membership_version_conflicts_total",
			Help: "Member list writes retried after losing an optimistic race",
		}),
		handRaises: factory.NewCounter(prometheus.CounterOpts{
			Name: "committeehub_hand_raises_total",
			Help: "Hand raises accepted into speaker queues",
		}),
		handRaisesLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "committeehub_hand_raises_rate_limited_total",
			Help: "Hand raises refused by the rate limiter",
		}),
		committeesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "committeehub_committees_created_total",
			Help: "Committees created",
		}),
		committeesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "committeehub_committees_deleted_total",
			Help: "Committees deleted together with their motions",
		}),
	}
}

func (m *Metrics) MotionCreated(motionType, variant string) {
	if m == nil {
		return
	}
	if variant == "" {
		variant = "none"
	}
	m.motionsCreated.WithLabelValues(motionType, variant).Inc()
}

func (m *Metrics) DiscussionAdded() {
	if m == nil {
		return
	}
	m.discussionEntries.Inc()
}

func (m *Metrics) VoteCast(choice string) {
	if m == nil {
		return
	}
	m.votesCast.WithLabelValues(choice).Inc()
}

func (m *Metrics) DecisionRecorded(outcome string) {
	if m == nil {
		return
	}
	m.decisionsRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PermissionDenied(action string) {
	if m == nil {
		return
	}
	m.permissionDenials.WithLabelValues(action).Inc()
}

func (m *Metrics) MembershipWrite(op string) {
	if m == nil {
		return
	}
	m.membershipWrites.WithLabelValues(op).Inc()
}

func (m *Metrics) MembershipConflict() {
	if m == nil {
		return
	}
	m.membershipRetries.Inc()
}

func (m *Metrics) HandRaised() {
	if m == nil {
		return
	}
	m.handRaises.Inc()
}

func (m *Metrics) HandRaiseLimited() {
	if m == nil {
		return
	}
	m.handRaisesLimited.Inc()
}

func (m *Metrics) CommitteeCreated() {
	if m == nil {
		return
	}
	m.committeesCreated.Inc()
}

func (m *Metrics) CommitteeDeleted() {
	if m == nil {
		return
	}
	m.committeesDeleted.Inc()
}
