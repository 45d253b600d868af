package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"heartpredict/heart"
)

// MessageType WebSocket消息类型
type MessageType string

const (
	MessagePredict    MessageType = "predict"
	MessagePrediction MessageType = "prediction"
	MessageError      MessageType = "error"
	MessagePing       MessageType = "ping"
	MessagePong       MessageType = "pong"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// Message WebSocket消息结构
type Message struct {
	Type MessageType     `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsClient 每个连接一个读协程与一个写协程
type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string
	handlers *Handlers
	logger   *zap.Logger
}

// handleWebSocket 交互式预测: 每条predict消息独立推理一次
func (h *Handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:     conn,
		send:     make(chan []byte, 16),
		clientID: uuid.NewString(),
		handlers: h,
		logger:   h.logger,
	}
	h.logger.Debug("websocket client connected", zap.String("client_id", client.clientID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.writePump(ctx, cancel)
	client.readPump(ctx)
}

// writePump WebSocket写入泵
func (c *wsClient) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", zap.String("client_id", c.clientID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump WebSocket读取泵
func (c *wsClient) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed", zap.String("client_id", c.clientID), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(ctx, Message{Type: MessageError, Data: errorData("invalid message: " + err.Error())})
			continue
		}
		c.reply(ctx, c.handleMessage(ctx, msg))
	}
}

func (c *wsClient) handleMessage(ctx context.Context, msg Message) Message {
	switch msg.Type {
	case MessagePing:
		return Message{Type: MessagePong, ID: msg.ID}

	case MessagePredict:
		in := heart.DefaultInput()
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &in); err != nil {
				return Message{Type: MessageError, ID: msg.ID, Data: errorData("invalid input: " + err.Error())}
			}
		}
		result, err := c.predict(ctx, in)
		if err != nil {
			data, _ := json.Marshal(errorBody(err))
			return Message{Type: MessageError, ID: msg.ID, Data: data}
		}
		data, _ := json.Marshal(predictResponse{Label: result.Label, Message: result.Message, Features: in.Vector()})
		return Message{Type: MessagePrediction, ID: msg.ID, Data: data}

	default:
		return Message{Type: MessageError, ID: msg.ID, Data: errorData("unknown message type " + string(msg.Type))}
	}
}

// predict 模型panic只影响当前消息, 连接继续可用
func (c *wsClient) predict(ctx context.Context, in heart.Input) (result heart.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.handlers.metrics.IncrCounter(metricErrors, 1, map[string]string{"kind": "panic"})
			c.logger.Error("panic recovered in websocket predict",
				zap.String("client_id", c.clientID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("%w: model panicked", heart.ErrInference)
		}
	}()
	return c.handlers.predict(ctx, in)
}

func (c *wsClient) reply(ctx context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal websocket message", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	case <-ctx.Done():
	}
}

func errorData(message string) json.RawMessage {
	data, _ := json.Marshal(errorResponse{Error: message})
	return data
}
