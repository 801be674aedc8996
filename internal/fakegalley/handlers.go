package fakegalley

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// legacyAccessRoleVersion is the API version that reports access roles as
// access_role_v2 next to a coarse access_role value.
const legacyAccessRoleVersion = 2

// Handler holds the HTTP handlers
type Handler struct {
	state *state
}

// NewHandler creates a new handler over the given state
func NewHandler(s *state) *Handler {
	return &Handler{state: s}
}

type newUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type connectionRequest struct {
	User string `json:"user"`
	Name string `json:"name"`
}

type connectionUpdate struct {
	Status string `json:"status"`
}

type newConversationRequest struct {
	Participants []string `json:"participants"`
	// Users is the field name current galley versions use
	Users []string `json:"users"`
	Name  *string  `json:"name"`
}

// Status handles GET and HEAD /i/status
func (h *Handler) Status(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// CreateUser handles POST /i/users
func (h *Handler) CreateUser(c echo.Context) error {
	var req newUserRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "bad-request", "invalid request body: "+err.Error())
	}
	if req.Name == "" {
		return errorJSON(c, http.StatusBadRequest, "bad-request", "name is required")
	}
	u := h.state.addUser(req.Name, req.Email)
	return c.JSON(http.StatusCreated, map[string]any{
		"id":           u.ID,
		"qualified_id": h.qualified(u.ID),
		"name":         u.Name,
		"email":        u.Email,
	})
}

// DeleteUser handles DELETE /i/users/:uid
func (h *Handler) DeleteUser(c echo.Context) error {
	if !h.state.deleteUser(c.Param("uid")) {
		return errorJSON(c, http.StatusNotFound, "not-found", "user not found")
	}
	return c.NoContent(http.StatusOK)
}

// CreateConnection handles POST /connections
func (h *Handler) CreateConnection(c echo.Context) error {
	self := c.Request().Header.Get("Z-User")
	var req connectionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "bad-request", "invalid request body: "+err.Error())
	}
	if req.User == "" || req.User == self {
		return errorJSON(c, http.StatusBadRequest, "invalid-user", "invalid connection target")
	}
	if !h.state.hasUser(self) || !h.state.hasUser(req.User) {
		return errorJSON(c, http.StatusNotFound, "not-found", "user not found")
	}

	status, existed := h.state.connect(self, req.User)
	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	return c.JSON(code, connectionView(self, req.User, status))
}

// UpdateConnection handles PUT /connections/:uid
func (h *Handler) UpdateConnection(c echo.Context) error {
	self := c.Request().Header.Get("Z-User")
	other := c.Param("uid")
	var req connectionUpdate
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "bad-request", "invalid request body: "+err.Error())
	}
	if req.Status != connAccepted {
		return errorJSON(c, http.StatusBadRequest, "bad-conn-update", "unsupported status "+req.Status)
	}
	if !h.state.accept(self, other) {
		return errorJSON(c, http.StatusForbidden, "bad-conn-update", "no pending connection")
	}
	return c.JSON(http.StatusOK, connectionView(self, other, connAccepted))
}

// CreateConversation handles POST /conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	self := c.Request().Header.Get("Z-User")
	var req newConversationRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "bad-request", "invalid request body: "+err.Error())
	}
	others := req.Participants
	if len(others) == 0 {
		others = req.Users
	}
	for _, o := range others {
		if !h.state.connected(self, o) {
			return errorJSON(c, http.StatusForbidden, "not-connected", "users are not connected")
		}
	}

	conv := h.state.addConversation(self, req.Name, others)
	c.Response().Header().Set(echo.HeaderLocation, "/conversations/"+conv.ID)
	return c.JSON(http.StatusCreated, h.conversationView(conv, self, apiVersion(c)))
}

// GetConversation handles GET /conversations/:cnv
func (h *Handler) GetConversation(c echo.Context) error {
	self := c.Request().Header.Get("Z-User")
	conv, ok := h.state.conversation(c.Param("cnv"))
	if !ok || !conv.isMember(self) {
		return errorJSON(c, http.StatusNotFound, "no-conversation", "conversation not found")
	}
	return c.JSON(http.StatusOK, h.conversationView(conv, self, apiVersion(c)))
}

// DeleteConversation handles DELETE /i/conversations/:cnv
func (h *Handler) DeleteConversation(c echo.Context) error {
	if !h.state.deleteConversation(c.Param("cnv")) {
		return errorJSON(c, http.StatusNotFound, "no-conversation", "conversation not found")
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) qualified(id string) map[string]string {
	return map[string]string{"id": id, "domain": h.state.domain}
}

// conversationView renders conv as seen by self. Only the access role fields
// depend on the API version.
func (h *Handler) conversationView(conv *conversation, self string, version int) map[string]any {
	others := make([]map[string]any, 0, len(conv.Members)-1)
	for _, m := range conv.Members {
		if m == self {
			continue
		}
		others = append(others, map[string]any{
			"id":                m,
			"qualified_id":      h.qualified(m),
			"conversation_role": "wire_member",
			"status":            0,
		})
	}

	view := map[string]any{
		"id":           conv.ID,
		"qualified_id": h.qualified(conv.ID),
		"type":         0,
		"creator":      conv.Creator,
		"name":         conv.Name,
		"access":       conv.Access,
		"members": map[string]any{
			"self": map[string]any{
				"id":                self,
				"qualified_id":      h.qualified(self),
				"conversation_role": "wire_admin",
				"otr_muted_status":  nil,
				"hidden":            false,
			},
			"others": others,
		},
		"message_timer":   nil,
		"receipt_mode":    nil,
		"protocol":        "proteus",
		"last_event":      "0.0",
		"last_event_time": "1970-01-01T00:00:00.000Z",
	}
	if version == legacyAccessRoleVersion {
		view["access_role"] = "activated"
		view["access_role_v2"] = conv.AccessRoles
	} else {
		view["access_role"] = conv.AccessRoles
	}
	return view
}

func connectionView(from, to, status string) map[string]any {
	return map[string]any{
		"from":         from,
		"to":           to,
		"status":       status,
		"conversation": nil,
		"last_update":  "1970-01-01T00:00:00.000Z",
	}
}

func errorJSON(c echo.Context, code int, label, message string) error {
	return c.JSON(code, map[string]any{
		"code":    code,
		"label":   label,
		"message": message,
	})
}
