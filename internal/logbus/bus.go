package logbus

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type Message struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
	Data any    `json:"data"`
}

type LogData struct {
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Bus fans log records out to live subscribers (the websocket stream) while
// keeping a bounded replay buffer for late joiners. An optional mirror logger
// gives the append-only process log.
type Bus struct {
	mu     sync.RWMutex
	buf    []Message
	head   int
	size   int
	subs   map[chan Message]struct{}
	mirror *log.Logger
	closed bool
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 200
	}
	return &Bus{
		buf:  make([]Message, capacity),
		subs: make(map[chan Message]struct{}),
	}
}

// MirrorTo also writes every published record through the given logger.
func (b *Bus) MirrorTo(logger *log.Logger) {
	b.mu.Lock()
	b.mirror = logger
	b.mu.Unlock()
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.size = 0
}

// Snapshot returns the buffered messages, oldest first.
func (b *Bus) Snapshot() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.buf[(b.head+i)%len(b.buf)])
	}
	return out
}

func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Message, buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Bus) Publish(typ string, data any) {
	msg := Message{
		Type: typ,
		Time: time.Now().UnixMilli(),
		Data: data,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.size < len(b.buf) {
		b.buf[(b.head+b.size)%len(b.buf)] = msg
		b.size++
	} else {
		b.buf[b.head] = msg
		b.head = (b.head + 1) % len(b.buf)
	}
	for ch := range b.subs {
		// Slow subscribers drop messages rather than block publishers.
		select {
		case ch <- msg:
		default:
		}
	}
	mirror := b.mirror
	b.mu.Unlock()

	if mirror != nil {
		mirror.Println(formatMirror(msg))
	}
}

func (b *Bus) Log(level, message string, fields map[string]any) {
	b.Publish("log", LogData{Level: level, Msg: message, Fields: fields})
}

func formatMirror(msg Message) string {
	data, ok := msg.Data.(LogData)
	if !ok {
		raw, _ := json.Marshal(msg.Data)
		return msg.Type + " " + string(raw)
	}
	line := "[" + data.Level + "] " + data.Msg
	if len(data.Fields) > 0 {
		raw, _ := json.Marshal(data.Fields)
		line += " " + string(raw)
	}
	return line
}
