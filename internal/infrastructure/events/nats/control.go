package nats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// Control actions
const (
	ActionStart = "start"
	ActionRetry = "retry"
	ActionStop  = "stop"
)

// Controller drives update sessions on behalf of remote requests.
type Controller interface {
	Submit(cfg *update.Config) error
	Retry(cfg *update.Config) error
	Stop()
}

// ControlReply is the response sent for every control request.
type ControlReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ControlServer answers start, retry and stop requests over core NATS
// request/reply. Request bodies for start and retry are JSON update configs.
type ControlServer struct {
	client     *Client
	controller Controller
	logger     *zap.Logger
	subs       []*nats.Subscription
}

// NewControlServer creates a new control server
func NewControlServer(client *Client, controller Controller, logger *zap.Logger) *ControlServer {
	return &ControlServer{
		client:     client,
		controller: controller,
		logger:     logger.Named("control"),
	}
}

// Start subscribes to the control subjects.
func (s *ControlServer) Start() error {
	for _, action := range []string{ActionStart, ActionRetry, ActionStop} {
		action := action
		subject := s.client.ControlSubject(action)
		sub, err := s.client.Connection().Subscribe(subject, func(msg *nats.Msg) {
			s.respond(msg, s.Handle(action, msg.Data))
		})
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	s.logger.Info("control subjects subscribed", zap.String("subject", s.client.ControlSubject("*")))
	return nil
}

// Stop removes the control subscriptions.
func (s *ControlServer) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("failed to unsubscribe", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.subs = nil
}

// Handle executes a control action and builds its reply.
func (s *ControlServer) Handle(action string, data []byte) ControlReply {
	var err error
	switch action {
	case ActionStop:
		s.controller.Stop()
	case ActionStart, ActionRetry:
		var cfg *update.Config
		cfg, err = update.DecodeRemoteConfig(data)
		if err != nil {
			break
		}
		if action == ActionStart {
			err = s.controller.Submit(cfg)
		} else {
			err = s.controller.Retry(cfg)
		}
	default:
		err = errors.New("unknown action")
	}

	if err != nil {
		s.logger.Warn("control request failed", zap.String("action", action), zap.Error(err))
		return ControlReply{Error: err.Error()}
	}
	return ControlReply{OK: true}
}

func (s *ControlServer) respond(msg *nats.Msg, reply ControlReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Error("failed to marshal control reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Error("failed to send control reply", zap.Error(err))
	}
}
