package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	logx "postbot/pkg/logx"

	"github.com/nsqio/go-nsq"
)

type NSQConfig struct {
	Enabled bool
	Addr    string
	Topic   string
	// Prefix selects which event types are forwarded. Empty means "post.".
	Prefix string
}

// Publisher is the part of *nsq.Producer the sink needs.
type Publisher interface {
	Publish(topic string, body []byte) error
	Stop()
}

// NSQSink forwards bus events to an NSQ topic as {type,time,data} JSON.
type NSQSink struct {
	pub    Publisher
	topic  string
	prefix string
	log    logx.Logger
}

type wireEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// NewNSQSink dials nothing; go-nsq connects lazily on first publish.
func NewNSQSink(cfg NSQConfig, log logx.Logger) (*NSQSink, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("events.nsq.addr is required")
	}
	p, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	p.SetLoggerLevel(nsq.LogLevelWarning)
	return NewSinkWithPublisher(cfg, p, log), nil
}

func NewSinkWithPublisher(cfg NSQConfig, pub Publisher, log logx.Logger) *NSQSink {
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = "postbot.events"
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "post."
	}
	return &NSQSink{pub: pub, topic: topic, prefix: prefix, log: log.With(logx.String("comp", "events.nsq"))}
}

// Run forwards events until ctx ends or the subscription closes.
func (s *NSQSink) Run(ctx context.Context, bus Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(e.Type, s.prefix) {
				continue
			}
			s.forward(e)
		}
	}
}

func (s *NSQSink) forward(e Event) {
	body, err := json.Marshal(wireEvent{Type: e.Type, Time: e.Time, Data: e.Data})
	if err != nil {
		s.log.Warn("event not encodable", logx.String("type", e.Type), logx.Err(err))
		return
	}
	if err := s.pub.Publish(s.topic, body); err != nil {
		s.log.Warn("nsq publish failed", logx.String("type", e.Type), logx.String("topic", s.topic), logx.Err(err))
	}
}

func (s *NSQSink) Stop() { s.pub.Stop() }
