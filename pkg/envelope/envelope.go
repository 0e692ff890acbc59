package envelope

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Envelope frames every message crossing the pub/sub channel and the
// WebSocket feed: live position events, counts, errors.
type Envelope struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Service   string          `json:"service"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
	Timestamp int64           `json:"ts"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func New(action, service string) Envelope {
	return Envelope{
		ID:        generateID(),
		Action:    action,
		Service:   service,
		Timestamp: time.Now().UnixMilli(),
	}
}

func NewEvent(action, service string, data interface{}) (Envelope, error) {
	e := New(action, service)
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func NewError(action, service string, code int, message string) Envelope {
	e := New(action, service)
	e.Error = &ErrorPayload{Code: code, Message: message}
	return e
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

func ParseData[T any](e Envelope) (T, error) {
	var v T
	err := json.Unmarshal(e.Data, &v)
	return v, err
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
