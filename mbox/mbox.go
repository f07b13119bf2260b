// Package mbox reads messages out of mbox archives and EML
// directories and appends messages into a new mbox file.
package mbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/pvesely/mbox-absence/model"
)

// Source is a sequence of messages fed to the batch loop one at a
// time. Each stops early when fn returns an error or ctx is canceled;
// records already handed to fn stay valid.
type Source interface {
	Each(ctx context.Context, fn func(env model.Envelope) error) error
	Count() (int, error)
}

// Scanner streams messages from a single mbox file.
type Scanner struct {
	path   string
	logger *slog.Logger
}

func NewScanner(path string, logger *slog.Logger) (*Scanner, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{path: path, logger: logger}, nil
}

// Each iterates the archive in order. A message that cannot be parsed
// is delivered as an Envelope with Err set and the raw bytes attached,
// so the caller can preserve it; only an unreadable container is fatal.
func (s *Scanner) Each(ctx context.Context, fn func(env model.Envelope) error) error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("message %d read: %w", idx, err)
		}

		name := fmt.Sprintf("message_%05d", idx)
		env := model.Envelope{Name: name}
		msg, err := model.Parse(raw)
		if err != nil {
			s.logger.Error("mbox message parse failed", "path", s.path, "index", idx, "err", err)
			env.Err = fmt.Errorf("message %d parse: %w", idx, err)
			env.Message = &model.Message{Raw: raw, Size: int64(len(raw))}
		} else {
			env.Message = msg
		}

		if err := fn(env); err != nil {
			return err
		}
	}
}

// Count returns the number of messages without parsing them. Used for
// the progress bar total before a run starts.
func (s *Scanner) Count() (int, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return 0, err
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			count++
			continue
		}
		count++
	}
}

// EMLDir streams every *.eml file in a directory, sorted by name.
type EMLDir struct {
	dir    string
	logger *slog.Logger
}

func NewEMLDir(dir string, logger *slog.Logger) (*EMLDir, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("eml directory is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EMLDir{dir: dir, logger: logger}, nil
}

func (d *EMLDir) list() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read eml directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *EMLDir) Each(ctx context.Context, fn func(env model.Envelope) error) error {
	names, err := d.list()
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		env := model.Envelope{Name: name}
		raw, err := os.ReadFile(filepath.Join(d.dir, name))
		if err != nil {
			d.logger.Error("eml read failed", "file", name, "err", err)
			env.Err = fmt.Errorf("read %s: %w", name, err)
		} else if msg, perr := model.Parse(raw); perr != nil {
			d.logger.Error("eml parse failed", "file", name, "err", perr)
			env.Err = fmt.Errorf("parse %s: %w", name, perr)
			env.Message = &model.Message{Raw: raw, Size: int64(len(raw))}
		} else {
			env.Message = msg
		}

		if err := fn(env); err != nil {
			return err
		}
	}
	return nil
}

func (d *EMLDir) Count() (int, error) {
	names, err := d.list()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// Writer appends messages to an mbox file in mboxrd framing.
type Writer struct {
	file *os.File
	w    *mboxlib.Writer
}

func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create mbox: %w", err)
	}
	return &Writer{file: file, w: mboxlib.NewWriter(file)}, nil
}

// Append writes one raw message. The separator line's sender and date
// come from the message headers, with safe fallbacks for both.
func (w *Writer) Append(raw []byte) error {
	from := "MAILER-DAEMON"
	date := time.Now()

	if msg, err := model.Parse(raw); err == nil {
		if addr, aerr := mail.ParseAddress(msg.Header("From")); aerr == nil {
			from = addr.Address
		}
		if !msg.ReceivedAt.IsZero() {
			date = msg.ReceivedAt
		}
	}

	mw, err := w.w.CreateMessage(from, date)
	if err != nil {
		return fmt.Errorf("start mbox message: %w", err)
	}
	if _, err := mw.Write(raw); err != nil {
		return fmt.Errorf("write mbox message: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	if err := w.w.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
