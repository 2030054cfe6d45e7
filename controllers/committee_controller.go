package controllers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"committeehub/services"
	"committeehub/structs"

	"github.com/gin-gonic/gin"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

type CommitteeController struct {
	base
	committees *services.CommitteeService
}

func NewCommitteeController(committees *services.CommitteeService, logger *slog.Logger, timeout time.Duration) *CommitteeController {
	return &CommitteeController{base: newBase(logger, timeout), committees: committees}
}

func (h *CommitteeController) List(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	committees, err := h.committees.ListCommittees(ctx, identity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committees": committees})
}

func (h *CommitteeController) Create(c *gin.Context) {
	var req structs.CreateCommitteeRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	committee, err := h.committees.CreateCommittee(ctx, identity(c), req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"committee": committee})
}

func (h *CommitteeController) Get(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	detail, err := h.committees.GetCommittee(ctx, id, identity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CommitteeController) Delete(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.committees.DeleteCommittee(ctx, id, identity(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Committee deleted"})
}

func (h *CommitteeController) UpdateSettings(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	var patch services.SettingsPatch
	if !h.bind(c, &patch) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	committee, err := h.committees.UpdateSettings(ctx, id, identity(c), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committee": committee})
}

func (h *CommitteeController) AddMember(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	var req structs.MemberRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	committee, err := h.committees.AddMember(ctx, id, identity(c), req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"committee": committee})
}

func (h *CommitteeController) UpdateMember(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	var req structs.MemberUpdateRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	committee, err := h.committees.UpdateMember(ctx, id, identity(c), c.Param("memberId"), req.Update())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committee": committee})
}

func (h *CommitteeController) RemoveMember(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	committee, err := h.committees.RemoveMember(ctx, id, identity(c), c.Param("memberId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committee": committee})
}

func (h *CommitteeController) TransferOwnership(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	var req structs.TransferOwnershipRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	committee, err := h.committees.TransferOwnership(ctx, id, identity(c), req.MemberID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committee": committee})
}

func (h *CommitteeController) RaiseHand(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	var req structs.HandRaiseRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	committee, err := h.committees.RaiseHand(ctx, id, identity(c), services.HandInput{Stance: req.Stance, Note: req.Note})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"committee": committee})
}

func (h *CommitteeController) LowerHand(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	handID, ok := h.objectID(c, "handId")
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	committee, err := h.committees.LowerHand(ctx, id, identity(c), handID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committee": committee})
}

// Activity returns recent stream events, newest first. ?limit= caps the count.
func (h *CommitteeController) Activity(c *gin.Context) {
	id, ok := h.objectID(c, "id")
	if !ok {
		return
	}
	limit := int64(defaultActivityLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxActivityLimit)
	}
	ctx, cancel := h.context(c)
	defer cancel()

	events, err := h.committees.Activity(ctx, id, identity(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
