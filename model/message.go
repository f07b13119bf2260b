package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
)

// Message represents a single email message read from an mbox archive or
// an EML file. Raw always holds the complete original bytes so a failed
// message can be preserved verbatim.
type Message struct {
	ID         string
	Hash       string
	ReceivedAt time.Time
	Size       int64
	Raw        []byte
}

// Envelope wraps a message alongside an optional error encountered while
// decoding. Message may still carry the raw bytes when Err is set. Name
// identifies the source item (EML filename or mbox position) for logs
// and reports.
type Envelope struct {
	Name    string
	Message *Message
	Err     error
}

// Parse reads a raw RFC 5322 message. A missing Message-Id is not an
// error; archived mail frequently lacks one.
func Parse(raw []byte) (*Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, err
	}

	id := strings.TrimSpace(entity.Header.Get("Message-Id"))
	id = strings.Trim(id, " <>")

	var receivedAt time.Time
	if date := entity.Header.Get("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			receivedAt = t
		}
	}

	sum := sha256.Sum256(raw)

	return &Message{
		ID:         id,
		Hash:       base64.StdEncoding.EncodeToString(sum[:]),
		ReceivedAt: receivedAt,
		Size:       int64(len(raw)),
		Raw:        raw,
	}, nil
}

// Entity re-parses the raw bytes into a MIME entity. Each call returns a
// fresh entity because part bodies are one-shot readers.
func (m *Message) Entity() (*message.Entity, error) {
	entity, err := message.Read(bytes.NewReader(m.Raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, err
	}
	return entity, nil
}

// Header returns the first raw value of the named header, or "".
func (m *Message) Header(key string) string {
	entity, err := m.Entity()
	if err != nil {
		return ""
	}
	return entity.Header.Get(key)
}

// Values returns every raw value of the named header in order. From, To
// and Cc are repeatable, so a single Get is not enough for address
// membership checks.
func (m *Message) Values(key string) []string {
	entity, err := m.Entity()
	if err != nil {
		return nil
	}

	var values []string
	fields := entity.Header.FieldsByKey(key)
	for fields.Next() {
		values = append(values, fields.Value())
	}
	return values
}
