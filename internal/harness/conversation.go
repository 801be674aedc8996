package harness

import (
	"context"
	"net/http"
	"net/url"
)

// CreateConversation creates a conversation owned by owner with the given
// participants and passes the raw response to fn.
func (h Harness) CreateConversation(ctx context.Context, owner User, participants []User, fn func(*Response) error) error {
	u, err := h.Resolve("galley", "/conversations", false)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}

	return h.Do(ctx, http.MethodPost, u, func(resp *Response) error {
		if resp.StatusCode == http.StatusCreated && h.teardown != nil {
			if id := ConversationID(resp); id != "" {
				h.deferDelete("galley", "/i/conversations/"+url.PathEscape(id))
			}
		}
		return fn(resp)
	}, WithUser(owner), WithJSON(map[string][]string{"participants": ids}))
}

// GetConversation fetches conversation id as user through this view.
func (h Harness) GetConversation(ctx context.Context, user User, id string, fn func(*Response) error) error {
	u, err := h.Resolve("galley", "/conversations/"+url.PathEscape(id), false)
	if err != nil {
		return err
	}
	return h.Do(ctx, http.MethodGet, u, fn, WithUser(user))
}

// ConversationID extracts the conversation identifier from a creation or fetch response.
func ConversationID(resp *Response) string {
	if id := resp.Get("id").String(); id != "" {
		return id
	}
	return resp.Get("qualified_id.id").String()
}
