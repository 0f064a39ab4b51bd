package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/huddle/datatypes"
	"github.com/AleutianAI/huddle/hub"
)

// restReplyTimeout bounds how long a REST handler waits for the hub loop.
const restReplyTimeout = 5 * time.Second

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// awaitReply runs a hub query and waits for its callback.
func awaitReply(call func(reply func(any))) (any, bool) {
	ch := make(chan any, 1)
	call(func(v any) {
		select {
		case ch <- v:
		default:
		}
	})
	select {
	case v := <-ch:
		return v, true
	case <-time.After(restReplyTimeout):
		return nil, false
	}
}

// ListUsers returns the current participant snapshots, same payload as the
// get_users socket request.
func ListUsers(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := awaitReply(h.GetUsers)
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hub did not respond"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetHistory returns filtered history, same payload as the get_history
// socket request. Query params: limit, messageType, since.
func GetHistory(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		req := datatypes.HistoryRequest{
			Limit:       limit,
			MessageType: c.Query("messageType"),
			Since:       c.Query("since"),
		}
		result, ok := awaitReply(func(reply func(any)) { h.GetHistory(req, reply) })
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hub did not respond"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetSessionSummary returns the cached conversation summary.
func GetSessionSummary(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := awaitReply(h.GetSessionSummary)
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hub did not respond"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
