package harness

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"galleyprobe/internal/core"
)

// User is a freshly provisioned account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewUser provisions a fresh user through brig's internal API.
func NewUser(ctx context.Context, h Harness) (User, error) {
	h = h.plain()
	u, err := h.Resolve("brig", "/i/users", true)
	if err != nil {
		return User{}, err
	}

	suffix := uuid.NewString()[:8]
	user := User{
		Name:  "galleyprobe-" + suffix,
		Email: "galleyprobe-" + suffix + "@example.com",
	}
	payload := map[string]string{
		"name":     user.Name,
		"email":    user.Email,
		"password": uuid.NewString(),
	}

	err = h.Do(ctx, http.MethodPost, u, func(resp *Response) error {
		if resp.StatusCode != http.StatusCreated {
			return fixtureError("brig", resp)
		}
		id := resp.Get("id").String()
		if id == "" {
			return &core.HarnessError{
				Type:       core.ErrorTypeFixture,
				Message:    "created user has no id",
				Service:    "brig",
				Method:     resp.Method,
				URL:        resp.URL.String(),
				StatusCode: resp.StatusCode,
			}
		}
		user.ID = id
		return nil
	}, WithJSON(payload))
	if err != nil {
		return User{}, err
	}

	h.deferDelete("brig", "/i/users/"+url.PathEscape(user.ID))
	return user, nil
}

// ConnectUsers makes a and b connected: a sends a connection request and b accepts it.
func ConnectUsers(ctx context.Context, h Harness, a, b User) error {
	h = h.plain()

	u, err := h.Resolve("brig", "/connections", false)
	if err != nil {
		return err
	}
	request := map[string]string{
		"user": b.ID,
		"name": "galleyprobe " + a.Name + " to " + b.Name,
	}
	err = h.Do(ctx, http.MethodPost, u, func(resp *Response) error {
		// 200 means the connection already existed
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			return fixtureError("brig", resp)
		}
		return nil
	}, WithUser(a), WithJSON(request))
	if err != nil {
		return err
	}

	u, err = h.Resolve("brig", "/connections/"+a.ID, false)
	if err != nil {
		return err
	}
	return h.Do(ctx, http.MethodPut, u, func(resp *Response) error {
		if resp.StatusCode != http.StatusOK {
			return fixtureError("brig", resp)
		}
		return nil
	}, WithUser(b), WithJSON(map[string]string{"status": "accepted"}))
}

// ConnectedUsers provisions n fresh users that are all pairwise connected.
func ConnectedUsers(ctx context.Context, h Harness, n int) ([]User, error) {
	if n < 0 {
		return nil, core.NewConfigError("brig", fmt.Sprintf("cannot provision %d users", n))
	}
	users := make([]User, 0, n)
	for i := 0; i < n; i++ {
		u, err := NewUser(ctx, h)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			if err := ConnectUsers(ctx, h, users[i], users[j]); err != nil {
				return nil, err
			}
		}
	}
	return users, nil
}

func fixtureError(service string, resp *Response) error {
	body, _ := resp.Body()
	return core.NewFixtureError(service, resp.Method, resp.URL.String(), resp.StatusCode, body)
}
