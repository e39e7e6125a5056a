// api/handlers/event_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/models"
	"analyticsdash/api/store"
	"analyticsdash/api/utils"
)

type EventTracker interface {
	Track(ctx context.Context, req models.EventCreateRequest) (*models.Event, error)
}

type SessionGetter interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
}

type EventHandlers struct {
	Tracker  EventTracker
	Sessions SessionGetter
	log      *logrus.Logger
}

func NewEventHandlers(tracker EventTracker, sessions SessionGetter, logger *logrus.Logger) *EventHandlers {
	return &EventHandlers{Tracker: tracker, Sessions: sessions, log: logger}
}

// TrackEvent records one client event and returns it with its id and timestamp.
func (h *EventHandlers) TrackEvent(c *gin.Context) {
	var req models.EventCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, utils.NewValidationError("Invalid request body: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	ev, err := h.Tracker.Track(ctx, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, ev)
}

func (h *EventHandlers) GetSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sess, err := h.Sessions.GetSession(ctx, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		respondError(c, h.log, utils.NewStorageError("get session", err))
		return
	}

	c.JSON(http.StatusOK, sess)
}
