// cmd/promo-push-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"promohub/internal/pkg/config"
	"promohub/internal/pkg/logger"
	"promohub/internal/pkg/mq"
	"promohub/internal/pkg/tracing"
	"promohub/internal/service/promo/domain"
	"promohub/internal/service/promo/infrastructure/rule"
)

const (
	serviceName = "promo-push-gateway"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// 每个网关节点用独立的消费者组，整个 promo-topic 的事件流在所有节点上
// 都完整可见，由各节点按本地连接的过滤器决定推给谁。
var nodeID = serviceName + "-" + uuid.New().String()[:8]

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// Hub 维护所有活跃的连接，并负责消息广播
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	lock       sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.id] = client
			h.lock.Unlock()
			logger.L().Info().Str("client_id", client.id).Str("node", nodeID).Msg("client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.lock.Unlock()
			logger.L().Info().Str("client_id", client.id).Msg("client unregistered")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// broadcast 把事件推给所有过滤器放行的客户端。慢客户端的发送缓冲满时
// 直接丢弃这条消息，不让单个连接拖慢整个广播。
func (h *Hub) broadcast(event *domain.PromoEvent, raw []byte) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	for _, client := range h.clients {
		if client.filter != nil {
			ok, err := client.filter.Matches(event)
			if err != nil {
				logger.L().Warn().Err(err).Str("client_id", client.id).Msg("event filter evaluation failed")
				continue
			}
			if !ok {
				continue
			}
		}
		select {
		case client.send <- raw:
		default:
			logger.L().Warn().Str("client_id", client.id).Msg("client send buffer full, dropping event")
		}
	}
}

// Client 是一个WebSocket连接的代表
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	id     string
	filter *rule.EventFilter
}

// writePump 把 send 通道里的消息写入连接，并周期性发送 ping 保活。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只消费 pong 和关闭帧，客户端不需要上行数据。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// serveWs 把 HTTP 连接升级为 WebSocket 订阅。
// 可选的 filter 参数是一条 CEL 表达式，例如
// filter=event.payload.status == "ended"，不带时接收全部事件。
func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	var filter *rule.EventFilter
	if expr := r.URL.Query().Get("filter"); expr != "" {
		compiled, err := rule.CompileEventFilter(expr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = compiled
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		id:     uuid.New().String(),
		filter: filter,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// consumeEvents 持续读取 promo-topic 并交给 Hub 广播。
func consumeEvents(ctx context.Context, hub *Hub, cfg *config.Config) error {
	reader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.PromoTopic, nodeID)
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.L().Error().Err(err).Msg("failed to read promo event, retrying")
			time.Sleep(5 * time.Second)
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)

		var event domain.PromoEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Ctx(msgCtx).Warn().Err(err).
				Str("key", string(msg.Key)).
				Msg("skipping malformed promo event")
			continue
		}

		logger.Ctx(msgCtx).Debug().
			Str("event_id", event.EventID).
			Str("event_type", string(event.EventType)).
			Msg("broadcasting promo event")
		hub.broadcast(&event, msg.Value)
	}
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the yaml config file")
	port := flag.Int("port", 8088, "listen port for websocket subscribers")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.Service.LogLevel)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Service.JaegerEndpoint)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	defer tp.Shutdown(context.Background())

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error { return hub.run(ctx) })
	g.Go(func() error { return consumeEvents(ctx, hub, cfg) })
	g.Go(func() error {
		logger.L().Info().Str("node", nodeID).Int("port", *port).Msg("push gateway started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.L().Error().Err(err).Msg("push gateway terminated")
	}
	logger.L().Info().Msg("push gateway stopped")
}
