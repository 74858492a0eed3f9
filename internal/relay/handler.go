package relay

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nexusterm/server/internal/worker"
)

// Handler owns the two relay websocket endpoints: one per browser tab, one
// per worker agent.
type Handler struct {
	hub       *Hub
	store     Store
	jwtSecret string
}

func NewHandler(hub *Hub, store Store, jwtSecret string) *Handler {
	return &Handler{hub: hub, store: store, jwtSecret: jwtSecret}
}

// ClientUpgrade validates the JWT from the query param before the WebSocket
// upgrade. Authentication failure refuses the connection outright.
func (h *Handler) ClientUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing token"})
		}

		token, err := jwtlib.Parse(tokenStr, func(t *jwtlib.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		claims, ok := token.Claims.(jwtlib.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("userID", sub)
		if name, ok := claims["name"].(string); ok {
			c.Locals("username", name)
		}
		if adm, ok := claims["adm"].(bool); ok {
			c.Locals("admin", adm)
		}

		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// ClientWS accepts a browser connection, pushes the initial lists, and enters
// the read loop.
func (h *Handler) ClientWS() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userIDStr, _ := c.Locals("userID").(string)
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			log.Printf("client-ws: invalid user id: %s", userIDStr)
			return
		}
		username, _ := c.Locals("username").(string)
		admin, _ := c.Locals("admin").(bool)

		conn := h.hub.RegisterClient(ClientIdentity{
			UserID:   userID,
			Username: username,
			Admin:    admin,
		}, c)
		defer h.hub.Unregister(conn)

		log.Printf("client-ws: user %s connected as %s", userID, conn.ID)
		h.hub.RefreshClient(conn)

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Printf("client-ws: read error from %s: %v", conn.ID, err)
				return
			}

			var msg ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				conn.SendError("invalid message")
				continue
			}

			h.hub.HandleClientMessage(conn, msg)
		}
	})
}

// WorkerUpgrade authenticates the worker's API key from the query param
// before the WebSocket upgrade.
func (h *Handler) WorkerUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Query("apiKey")
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing api key"})
		}

		w, err := h.store.WorkerByAPIKey(apiKey)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api key"})
		}

		c.Locals("workerID", w.ID.String())
		c.Locals("workerName", w.Name)
		c.Locals("nameHint", c.Query("name"))

		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// WorkerWS accepts a worker agent connection, marks the worker online, and
// enters the read loop. The worker is marked offline again only if this
// connection still owns the registry slot when it drops.
func (h *Handler) WorkerWS() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		workerIDStr, _ := c.Locals("workerID").(string)
		workerID, err := uuid.Parse(workerIDStr)
		if err != nil {
			log.Printf("worker-ws: invalid worker id: %s", workerIDStr)
			return
		}

		storedName, _ := c.Locals("workerName").(string)
		if hint, _ := c.Locals("nameHint").(string); hint != "" && hint != storedName {
			if err := h.store.SetWorkerName(workerID, hint); err != nil {
				log.Printf("worker-ws: rename worker %s: %v", workerID, err)
			}
		}
		if err := h.store.SetWorkerStatus(workerID, worker.StatusOnline, time.Now()); err != nil {
			log.Printf("worker-ws: mark worker %s online: %v", workerID, err)
		}

		conn := h.hub.RegisterWorker(workerID, c)
		h.hub.BroadcastLists()
		log.Printf("worker-ws: worker %s connected as %s", workerID, conn.ID)

		defer func() {
			if h.hub.Unregister(conn) {
				if err := h.store.SetWorkerStatus(workerID, worker.StatusOffline, time.Now()); err != nil {
					log.Printf("worker-ws: mark worker %s offline: %v", workerID, err)
				}
				h.hub.BroadcastLists()
			}
		}()

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Printf("worker-ws: read error from worker %s: %v", workerID, err)
				return
			}

			var msg WorkerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("worker-ws: invalid message from worker %s: %v", workerID, err)
				continue
			}

			h.hub.HandleWorkerMessage(conn, msg)
		}
	})
}
