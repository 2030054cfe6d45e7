package memstore

import (
	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func cloneObjectID(id *primitive.ObjectID) *primitive.ObjectID {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}

func cloneMembers(in []models.Member) []models.Member {
	if in == nil {
		return nil
	}
	out := make([]models.Member, len(in))
	for i, m := range in {
		out[i] = m
		out[i].UserID = cloneObjectID(m.UserID)
		if m.Permissions != nil {
			out[i].Permissions = append([]models.Permission{}, m.Permissions...)
		}
	}
	return out
}

func cloneHandRaise(h models.HandRaise) models.HandRaise {
	h.UserID = cloneObjectID(h.UserID)
	return h
}

func cloneCommittee(c *models.Committee) *models.Committee {
	out := *c
	if c.Settings != nil {
		settings := *c.Settings
		out.Settings = &settings
	}
	out.Members = cloneMembers(c.Members)
	if c.HandRaises != nil {
		out.HandRaises = make([]models.HandRaise, len(c.HandRaises))
		for i, h := range c.HandRaises {
			out.HandRaises[i] = cloneHandRaise(h)
		}
	}
	return &out
}

func cloneMotion(m *models.Motion) *models.Motion {
	out := *m
	out.ParentMotionID = cloneObjectID(m.ParentMotionID)
	if m.Discussion != nil {
		out.Discussion = append([]models.DiscussionEntry{}, m.Discussion...)
	}
	if m.Votes != nil {
		out.Votes = append([]models.Vote{}, m.Votes...)
	}
	if m.DecisionRecord != nil {
		record := *m.DecisionRecord
		out.DecisionRecord = &record
	}
	return &out
}
