package controllers

import (
	"log/slog"
	"net/http"
	"time"

	"committeehub/services"
	"committeehub/structs"

	"github.com/gin-gonic/gin"
)

type MotionController struct {
	base
	motions *services.MotionService
}

func NewMotionController(motions *services.MotionService, logger *slog.Logger, timeout time.Duration) *MotionController {
	return &MotionController{base: newBase(logger, timeout), motions: motions}
}

func (h *MotionController) List(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	motions, err := h.motions.ListMotions(ctx, id, identity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"motions": motions})
}

func (h *MotionController) Create(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	var req structs.MotionRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	motion, err := h.motions.CreateMotion(ctx, id, identity(c), req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"motion": motion})
}

func (h *MotionController) Get(c *gin.Context) {
	id, ok := h.objectID(c, "motionId")
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	view, err := h.motions.GetMotion(ctx, id, identity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *MotionController) AddDiscussion(c *gin.Context) {
	id, ok := h.objectID(c, "motionId")
	if !ok {
		return
	}
	var req structs.DiscussionRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	motion, err := h.motions.AddDiscussion(ctx, id, identity(c), services.DiscussionInput{Stance: req.Stance, Content: req.Content})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"motion": motion})
}

func (h *MotionController) CastVote(c *gin.Context) {
	id, ok := h.objectID(c, "motionId")
	if !ok {
		return
	}
	var req structs.VoteRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	motion, err := h.motions.CastVote(ctx, id, identity(c), services.VoteInput{Choice: req.Choice})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"motion": motion})
}

func (h *MotionController) RecordDecision(c *gin.Context) {
	id, ok := h.objectID(c, "motionId")
	if !ok {
		return
	}
	var req structs.DecisionRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	motion, err := h.motions.RecordDecision(ctx, id, identity(c), services.DecisionInput{
		Outcome: req.Outcome,
		Summary: req.Summary,
		Pros:    req.Pros,
		Cons:    req.Cons,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"motion": motion})
}

func (h *MotionController) CreateSubMotion(c *gin.Context) {
	id, ok := h.objectID(c, "motionId")
	if !ok {
		return
	}
	var req structs.MotionRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	motion, err := h.motions.CreateSubMotion(ctx, id, identity(c), req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"motion": motion})
}

func (h *MotionController) CreateOverturn(c *gin.Context) {
	id, ok := h.objectID(c, "motionId")
	if !ok {
		return
	}
	var req structs.OverturnRequest
	if !h.bindOptional(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	motion, err := h.motions.CreateOverturn(ctx, id, identity(c), services.OverturnInput{Title: req.Title, Description: req.Description})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"motion": motion})
}
