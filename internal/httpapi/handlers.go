package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pbx-engine/internal/auth"
	"pbx-engine/internal/conference"
	"pbx-engine/internal/internalcall"
	"pbx-engine/internal/presence"
	"pbx-engine/internal/reporting"
	"pbx-engine/internal/voicemail"
)

// Handlers exposes the tenant-facing control surface. Identity (user, tenant,
// role) is read from the request context installed by the auth middleware.
type Handlers struct {
	Calls       *internalcall.Service
	Conferences *conference.Service
	Presence    *presence.Service
	Voicemail   *voicemail.Service
	Reports     *reporting.Service
}

func identity(c *gin.Context) (userID, tenantID string, ok bool) {
	ctx := c.Request.Context()
	uid, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", "", false
	}
	tid, err := auth.TenantID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", "", false
	}
	return uid, tid, true
}

/* ===================== INTERNAL CALLS ===================== */

type startInternalCallRequest struct {
	FromExtensionID string `json:"from_extension_id" binding:"required"`
	ToExtensionID   string `json:"to_extension_id" binding:"required"`
	// TenantID is optional; when present it must match the token's tenant.
	TenantID string `json:"tenant_id"`
}

func (h *Handlers) StartInternalCall(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	var req startInternalCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_extension_id and to_extension_id are required"})
		return
	}
	if req.TenantID != "" && req.TenantID != tenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tenant"})
		return
	}
	call, err := h.Calls.Start(c.Request.Context(), tenantID, req.FromExtensionID, req.ToExtensionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"internal_call":   call,
		"conference_name": call.ConferenceName,
	})
}

func (h *Handlers) ListInternalCalls(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	calls, err := h.Calls.List(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	if calls == nil {
		calls = []internalcall.InternalCall{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}

func (h *Handlers) GetInternalCall(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h *Handlers) EndInternalCall(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	call, err := h.Calls.End(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duration_seconds": call.DurationSeconds})
}

/* ===================== CONFERENCES & TRANSFER ===================== */

type startConferenceRequest struct {
	CurrentCallSID string `json:"currentCallSid" binding:"required"`
	ConferenceName string `json:"conferenceName"`
}

func (h *Handlers) StartConference(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}
	var req startConferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "currentCallSid is required"})
		return
	}
	conf, err := h.Conferences.Start(c.Request.Context(), tenantID, userID, req.CurrentCallSID, req.ConferenceName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conf)
}

type addParticipantRequest struct {
	ConferenceSID     string `json:"conferenceSid" binding:"required"`
	ParticipantNumber string `json:"participantNumber" binding:"required"`
}

func (h *Handlers) AddConferenceParticipant(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	var req addParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conferenceSid and participantNumber are required"})
		return
	}
	conf, found, err := h.Conferences.FindBySID(c.Request.Context(), req.ConferenceSID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found || conf.TenantID != tenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "conference not found"})
		return
	}
	p, err := h.Conferences.AddParticipant(c.Request.Context(), tenantID, conf.ID, req.ParticipantNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"participant": p})
}

func (h *Handlers) GetConference(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	view, err := h.Conferences.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type transferRequest struct {
	CallSID    string `json:"callSid" binding:"required"`
	TransferTo string `json:"transferTo" binding:"required"`
	// TransferType is warm or cold; defaults to cold.
	TransferType string `json:"transferType"`
}

func (h *Handlers) TransferCall(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "callSid and transferTo are required"})
		return
	}
	mode := conference.TransferMode(req.TransferType)
	if req.TransferType == "" {
		mode = conference.TransferCold
	}
	res, err := h.Conferences.Transfer(c.Request.Context(), tenantID, req.CallSID, req.TransferTo, mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfer": res})
}

/* ===================== PRESENCE ===================== */

func (h *Handlers) ListPresence(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	rows, err := h.Presence.List(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []presence.Presence{}
	}
	c.JSON(http.StatusOK, gin.H{"presence": rows})
}

func (h *Handlers) GetPresence(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.Presence.Get(c.Request.Context(), tenantID, c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type setPresenceRequest struct {
	Status        string `json:"status" binding:"required"`
	StatusMessage string `json:"status_message"`
	ExtensionID   string `json:"extension_id"`
}

// SetPresence updates a user's status within the caller's tenant.
func (h *Handlers) SetPresence(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	var req setPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	p, err := h.Presence.SetStatus(c.Request.Context(), tenantID, c.Param("user_id"), req.ExtensionID,
		presence.Status(req.Status), req.StatusMessage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) Heartbeat(c *gin.Context) {
	userID, tenantID, ok := identity(c)
	if !ok {
		return
	}
	if err := h.Presence.Heartbeat(c.Request.Context(), tenantID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

/* ===================== VOICEMAIL ===================== */

func (h *Handlers) ListVoicemails(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	extensionID := c.Query("extension_id")
	rows, err := h.Voicemail.ListByExtension(c.Request.Context(), tenantID, extensionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []voicemail.Voicemail{}
	}
	c.JSON(http.StatusOK, gin.H{"voicemails": rows})
}

func (h *Handlers) MarkVoicemailListened(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	if err := h.Voicemail.MarkListened(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

/* ===================== REPORTS ===================== */

func (h *Handlers) CallsSummary(c *gin.Context) {
	_, tenantID, ok := identity(c)
	if !ok {
		return
	}
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}
	summary, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		TenantID:    tenantID,
		Range:       reporting.TimeRange{From: from, To: to},
		ExtensionID: c.Query("extension_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
