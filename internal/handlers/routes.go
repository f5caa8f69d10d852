package handlers

import "github.com/gin-gonic/gin"

// Handlers bundles every HTTP handler mounted under /api.
type Handlers struct {
	Chat     *ChatHandler
	Group    *GroupHandler
	Claim    *ClaimHandler
	Settings *SettingsHandler
	Presence *PresenceHandler
}

// Register mounts the API routes on api. Authentication and rate limiting
// are applied by the caller.
func (h Handlers) Register(api gin.IRoutes) {
	api.POST("/chat/messages", h.Chat.SendMessage)
	api.GET("/chat/messages", h.Chat.ListMessages)
	api.PATCH("/chat/messages/:id", h.Chat.EditMessage)
	api.DELETE("/chat/messages/:id", h.Chat.DeleteMessage)
	api.POST("/chat/messages/:id/read", h.Chat.MarkRead)
	api.POST("/chat/read", h.Chat.MarkChatRead)
	api.GET("/chat/unread", h.Chat.UnreadCounts)
	api.POST("/chat/typing", h.Chat.SetTyping)
	api.GET("/chat/typing", h.Chat.GetTyping)

	api.GET("/chat/group", h.Group.TeamChat)
	api.POST("/chat/groups/:id/members", h.Group.AddMember)

	api.GET("/presence", h.Presence.Online)

	api.POST("/claims", h.Claim.Claim)
	api.GET("/claims", h.Claim.ListClaimed)
	api.POST("/claims/release", h.Claim.Release)
	api.GET("/history", h.Claim.History)
	api.POST("/queue", h.Claim.AddItems)
	api.GET("/queue", h.Claim.QueueStatus)

	api.GET("/claim-settings", h.Settings.Get)
	api.PUT("/claim-settings", h.Settings.Update)
}
