package handler

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/dbdemo/showcase/internal/carousel"
	"github.com/dbdemo/showcase/internal/middleware"
	"github.com/dbdemo/showcase/internal/model"
	ws "github.com/dbdemo/showcase/internal/websocket"
)

type WSHandler struct {
	hub              *ws.Hub
	carouselInterval time.Duration
}

func NewWSHandler(hub *ws.Hub, carouselInterval time.Duration) *WSHandler {
	return &WSHandler{
		hub:              hub,
		carouselInterval: carouselInterval,
	}
}

// Result handles WS /ws/result: live status of the session's job
func (h *WSHandler) Result(c *websocket.Conn) {
	sess, _ := c.Locals(middleware.SessionLocal).(*model.Session)
	if !sess.HasJob() {
		data, _ := json.Marshal(ws.NewCompleteMessage("", model.JobStatus{Kind: model.StatusNoJob}))
		c.WriteMessage(websocket.TextMessage, data)
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return
	}
	h.hub.HandleConnection(c, sess.JobID)
}

// Carousel handles WS /ws/carousel: a private template carousel
func (h *WSHandler) Carousel(c *websocket.Conn) {
	car := carousel.New(model.Templates(), carousel.WithInterval(h.carouselInterval))
	ws.ServeCarousel(c, car)
}
