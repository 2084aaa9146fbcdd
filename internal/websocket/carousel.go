package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/dbdemo/showcase/internal/carousel"
	"github.com/dbdemo/showcase/internal/model"
)

// ServeCarousel runs a private carousel for c. Auto-advance stops when the
// peer goes away.
func ServeCarousel(c *websocket.Conn, car *carousel.Carousel) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := newOutbox()
	defer out.close()

	car.OnChange(func(s carousel.Slide) {
		out.push(NewSlideMessage(s))
	})
	out.push(NewSlideMessage(car.Current()))

	go writePump(c, out.send)
	go car.Run(ctx)

	readPump(c, func(msg model.WSMessage) {
		if reply := CarouselCommand(car, msg); reply != nil {
			out.push(reply)
		}
	})
}

// CarouselCommand applies one client message to car. Slide changes reach the
// client through the carousel's observers; the return value is an extra
// direct reply, if any.
func CarouselCommand(car *carousel.Carousel, msg model.WSMessage) interface{} {
	switch msg.Type {
	case model.WSCommandNext:
		car.Next()
	case model.WSCommandPrevious:
		car.Previous()
	case model.WSCommandSelect:
		if _, err := car.Select(msg.Index); err != nil {
			return model.WSErrorMessage{
				Type:  model.WSMessageTypeError,
				Error: model.WSError{Code: "INVALID_INDEX", Message: err.Error()},
			}
		}
	case model.WSCommandPause:
		car.Pause()
	case model.WSCommandResume:
		car.Resume()
	case model.WSMessageTypePing:
		return model.WSMessage{Type: model.WSMessageTypePong}
	default:
		return model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			Error: model.WSError{Code: "UNKNOWN_COMMAND", Message: "unknown command " + msg.Type},
		}
	}
	return nil
}

// NewSlideMessage renders a slide for the wire
func NewSlideMessage(s carousel.Slide) model.WSSlideMessage {
	return model.WSSlideMessage{
		Type:     model.WSMessageTypeSlide,
		Index:    s.Index,
		Previous: s.Previous,
		Paused:   s.Paused,
		Reason:   s.Reason,
		Template: s.Template,
	}
}

// outbox is a send channel that tolerates pushes after close
type outbox struct {
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newOutbox() *outbox {
	return &outbox{send: make(chan []byte, sendBuffer)}
}

func (o *outbox) push(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.send <- data:
	default:
	}
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.send)
	}
}
