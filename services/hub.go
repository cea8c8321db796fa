package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type EventType string

const (
	EventCourseCreated     EventType = "course_created"
	EventCourseDeleted     EventType = "course_deleted"
	EventOpenCourse        EventType = "open_course"
	EventOpenCoursesList   EventType = "open_courses_list"
	EventOpenNewCourseForm EventType = "open_new_course_form"
	EventCoursesRefreshed  EventType = "courses_refreshed"
)

type Event struct {
	Type     EventType `json:"type"`
	CourseID uint      `json:"course_id,omitempty"`
	Payload  any       `json:"payload,omitempty"`
}

// Message is the wire frame sent to websocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Publisher is the emitting side of the hub.
type Publisher interface {
	Publish(ev Event)
}

// Subscription receives events of the requested types in publish order.
// Events queue without bound until read, so a slow reader never loses one.
type Subscription struct {
	C     <-chan Event
	out   chan Event
	types map[EventType]bool

	mutex   sync.Mutex
	pending []Event
	notify  chan struct{}
	stop    chan struct{}
}

func newSubscription(types []EventType) *Subscription {
	out := make(chan Event)
	sub := &Subscription{
		C:      out,
		out:    out,
		types:  make(map[EventType]bool, len(types)),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	go sub.pump()
	return sub
}

func (s *Subscription) wants(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

func (s *Subscription) enqueue(ev Event) {
	s.mutex.Lock()
	s.pending = append(s.pending, ev)
	s.mutex.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pump hands queued events to C one at a time and closes C on stop.
func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mutex.Lock()
		if len(s.pending) == 0 {
			s.mutex.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.stop:
				return
			}
		}
		ev := s.pending[0]
		s.pending[0] = Event{}
		s.pending = s.pending[1:]
		s.mutex.Unlock()

		select {
		case s.out <- ev:
		case <-s.stop:
			return
		}
	}
}

// Hub serializes every published event on one goroutine and fans it out to
// in-process subscribers and websocket clients.
type Hub struct {
	clients     map[*Client]bool
	subscribers map[*Subscription]bool
	broadcast   chan Event
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	mutex       sync.RWMutex
	stateSync   func(ctx context.Context) (interface{}, error)
}

type Client struct {
	hub    *Hub
	id     string
	socket *websocket.Conn
	send   chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subscribers: make(map[*Subscription]bool),
		broadcast:   make(chan Event, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
	}
}

// SetStateSync installs the snapshot sent to every client when it connects.
func (h *Hub) SetStateSync(fn func(ctx context.Context) (interface{}, error)) {
	h.mutex.Lock()
	h.stateSync = fn
	h.mutex.Unlock()
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client registered: %s - Total clients: %d", client.id, total)
			h.sendStateSync(ctx, client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("Client unregistered: %s - Total clients: %d", client.id, len(h.clients))
			}
			h.mutex.Unlock()

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

// Publish queues ev for delivery. It is a no-op once the hub has stopped.
func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
		log.Printf("Hub stopped, dropping %s", ev.Type)
	}
}

// Subscribe registers for the given event types; no types means every event.
func (h *Hub) Subscribe(types ...EventType) *Subscription {
	sub := newSubscription(types)

	h.mutex.Lock()
	h.subscribers[sub] = true
	h.mutex.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.stop)
	}
}

func (h *Hub) deliver(ev Event) {
	data, err := sonic.Marshal(Message{Type: string(ev.Type), Payload: eventPayload(ev)})
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for sub := range h.subscribers {
		if !sub.wants(ev.Type) {
			continue
		}
		sub.enqueue(ev)
	}

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			log.Printf("Client %s send buffer full, closing connection", client.id)
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func eventPayload(ev Event) interface{} {
	if ev.Payload != nil {
		return ev.Payload
	}
	if ev.CourseID != 0 {
		return map[string]interface{}{"course_id": ev.CourseID}
	}
	return nil
}

func (h *Hub) sendStateSync(ctx context.Context, client *Client) {
	h.mutex.RLock()
	fn := h.stateSync
	h.mutex.RUnlock()
	if fn == nil {
		return
	}

	state, err := fn(ctx)
	if err != nil {
		log.Printf("Error building state sync for client %s: %v", client.id, err)
		return
	}

	data, err := sonic.Marshal(Message{Type: "state_sync", Payload: state})
	if err != nil {
		log.Printf("Error marshaling state sync message: %v", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
		log.Printf("Client %s send buffer full, skipping state sync", client.id)
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn) *Client {
	client := &Client{
		hub:    h,
		id:     uuid.NewString(),
		socket: conn,
		send:   make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return client
	}

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		data, _ := sonic.Marshal(Message{Type: "pong", Payload: "pong"})
		c.trySend(data)

	case "request_state":
		c.hub.sendStateSync(context.Background(), c)

	default:
		log.Printf("Unknown message type: %s from client %s", msg.Type, c.id)
	}
}

func (c *Client) trySend(data []byte) {
	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) ID() string {
	return c.id
}
