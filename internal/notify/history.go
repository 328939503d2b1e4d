package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/classhub/classhub-go/internal/api"
	"github.com/classhub/classhub-go/internal/models"
)

// History pulls the stored notification list over REST, complementing the
// realtime channel after a cold start.
type History struct {
	client *api.Client
}

func NewHistory(client *api.Client) *History {
	return &History{client: client}
}

// Fetch returns the user's notifications, newest first per the server's
// ordering contract.
func (h *History) Fetch(ctx context.Context, userID int64) ([]models.Notification, error) {
	var notifications []models.Notification
	path := fmt.Sprintf("/users/%d/notifications", userID)
	if err := h.client.JSON(ctx, http.MethodGet, path, nil, nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}
