package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/NicolasHaas/gowhisper/pkg/audio"
)

// StartRecording captures a voice message until StopRecording.
func (c *Client) StartRecording() error {
	if c.backend == nil {
		return ErrNoAudio
	}

	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.recorder != nil {
		return ErrRecording
	}

	capture, err := c.backend.NewCapturer(c.opts.Format)
	if err != nil {
		return err
	}
	queue := NewSampleQueue()
	if err := capture.Start(queue.Push); err != nil {
		return err
	}
	c.recorder, c.recording = capture, queue
	slog.Debug("recording started")
	return nil
}

// StopRecording ends the capture and keeps the clip as the pending voice
// message.
func (c *Client) StopRecording() (*VoiceMessage, error) {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.recorder == nil {
		return nil, ErrNoRecording
	}

	err := c.recorder.Stop()
	msg := &VoiceMessage{
		Sender:     c.Username(),
		Channels:   c.opts.Format.Channels,
		SampleRate: c.opts.Format.SampleRate,
		Samples:    c.recording.Drain(),
	}
	c.recorder, c.recording = nil, nil
	c.pending = msg
	slog.Debug("recording stopped", "duration", msg.Duration())
	return msg, err
}

// Recording reports whether a capture is running.
func (c *Client) Recording() bool {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	return c.recorder != nil
}

// PendingVoiceMessage returns the last finished recording.
func (c *Client) PendingVoiceMessage() *VoiceMessage {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	return c.pending
}

func (c *Client) abortRecording() {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Stop(); err != nil {
		slog.Warn("stop recording", "err", err)
	}
	c.recorder, c.recording = nil, nil
}

// PlayVoiceMessage plays the last received voice message and returns when
// it has finished or ctx ends.
func (c *Client) PlayVoiceMessage(ctx context.Context) error {
	msg := c.LastVoiceMessage()
	if msg == nil {
		return ErrNoRecording
	}
	return c.play(ctx, msg)
}

// PlayRecording plays back the pending recording.
func (c *Client) PlayRecording(ctx context.Context) error {
	msg := c.PendingVoiceMessage()
	if msg == nil {
		return ErrNoRecording
	}
	return c.play(ctx, msg)
}

func (c *Client) play(ctx context.Context, msg *VoiceMessage) error {
	if c.backend == nil {
		return ErrNoAudio
	}
	player, err := c.backend.NewPlayer(audio.Format{
		Channels:       msg.Channels,
		SampleRate:     msg.SampleRate,
		FramesPerBlock: c.opts.Format.FramesPerBlock,
	})
	if err != nil {
		return err
	}

	queue := NewSampleQueue()
	queue.Push(msg.Samples)
	done := make(chan struct{})
	var once sync.Once
	fill := func(out []int16) {
		n := queue.Fill(out)
		clear(out[n:])
		if n < len(out) {
			once.Do(func() { close(done) })
		}
	}
	if err := player.Start(fill); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	if err := player.Stop(); err != nil {
		return err
	}
	return ctx.Err()
}
