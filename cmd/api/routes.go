package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pbx-engine/internal/httpapi"
	"pbx-engine/internal/rbac"
)

// registerPublicRoutes mounts health and the carrier webhook surface. Webhooks
// carry no JWT; tenant identity rides on the ?tenant= query parameter
// configured per Twilio number.
func registerPublicRoutes(r *gin.Engine, hooks *httpapi.WebhookHandlers) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	tw := r.Group("/webhooks/twilio")
	// /inbound is the number's voice URL; /ivr is the gather action. Both
	// route through the same machine.
	tw.POST("/inbound", hooks.Voice)
	tw.POST("/inbound/fallback", hooks.VoiceFallback)
	tw.POST("/ivr", hooks.Voice)
	tw.POST("/dial-result", hooks.DialResult)
	tw.POST("/conference-status", hooks.ConferenceStatus)
	tw.POST("/recording-status", hooks.RecordingStatus)
	tw.POST("/recording-done", hooks.RecordingDone)
	tw.POST("/transcription", hooks.Transcription)
}

// registerProtectedRoutes mounts the tenant control surface behind JWT auth
// and tenant enforcement.
func registerProtectedRoutes(r *gin.Engine, api *httpapi.Handlers, requireAuth gin.HandlerFunc) {
	v1 := r.Group("/v1", requireAuth, rbac.RequireTenant())

	agents := v1.Group("", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent))

	agents.POST("/internal-calls", api.StartInternalCall)
	agents.GET("/internal-calls", api.ListInternalCalls)
	agents.GET("/internal-calls/:id", api.GetInternalCall)
	agents.DELETE("/internal-calls/:id", api.EndInternalCall)

	agents.POST("/conference/start", api.StartConference)
	agents.POST("/conference/add-participant", api.AddConferenceParticipant)
	agents.GET("/conference/:id", api.GetConference)
	agents.POST("/calls/transfer", api.TransferCall)

	agents.GET("/presence", api.ListPresence)
	agents.GET("/presence/:user_id", api.GetPresence)
	agents.PUT("/presence/:user_id", api.SetPresence)
	agents.POST("/presence/heartbeat", api.Heartbeat)

	agents.GET("/voicemails", api.ListVoicemails)
	agents.POST("/voicemails/:id/listened", api.MarkVoicemailListened)

	// Reports are owner-facing.
	owners := v1.Group("", rbac.RequireAnyRole(rbac.RoleOwner))
	owners.GET("/reports/calls-summary", api.CallsSummary)
}
