package session

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// ReplayDialer serves a recorded stream: one JSON event per line. Every Dial
// replays the same recording from the start.
type ReplayDialer struct {
	Open func() (io.ReadCloser, error)
}

// NewReplayFile replays the newline-delimited JSON file at path.
func NewReplayFile(path string) *ReplayDialer {
	return &ReplayDialer{Open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

// NewReplayBytes replays an in-memory recording.
func NewReplayBytes(b []byte) *ReplayDialer {
	return &ReplayDialer{Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}}
}

func (d *ReplayDialer) Dial(_ context.Context, conversationID string) (Channel, error) {
	rc, err := d.Open()
	if err != nil {
		return nil, fmt.Errorf("open replay for %s: %w", conversationID, err)
	}
	ch := &replayChannel{
		rc:     rc,
		frames: make(chan Frame),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go ch.read()
	return ch, nil
}

type replayChannel struct {
	rc     io.ReadCloser
	frames chan Frame
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	err    error
}

func (c *replayChannel) Frames() <-chan Frame { return c.frames }

// Err is only meaningful once Frames is closed.
func (c *replayChannel) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *replayChannel) Close() error {
	c.once.Do(func() { close(c.stop) })
	<-c.done
	return nil
}

func (c *replayChannel) read() {
	defer close(c.frames)
	defer close(c.done)
	defer c.rc.Close()

	scanner := bufio.NewScanner(c.rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		select {
		case c.frames <- Frame{Data: append([]byte(nil), line...)}:
		case <-c.stop:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.err = fmt.Errorf("read replay: %w", err)
	}
}
