// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// defaultMixerInterval is the constant drain period named in spec §4.5
// ("constant-rate mixer ... default interval 100ms").
const defaultMixerInterval = 100 * time.Millisecond

// defaultMixerQueueDepth bounds how many real frames can wait for the
// next tick before a sender is told to back off.
const defaultMixerQueueDepth = 64

// frameReal and frameDummy are the values of the one cleartext flag byte every mixer frame carries,
// allowing a receiver to drop cover traffic without touching the AEAD
// ciphertext underneath (spec §4.5 "is_dummy bit").
const (
	frameReal  byte = 0
	frameDummy byte = 1
)

// Mixer emits exactly one frame per tick, drawn from its outbound queue
// if non-empty or else a padding-ladder-sized dummy, so an observer of
// wire traffic learns nothing about real send timing or volume (spec
// §4.5 "Constant-rate mixer").
type Mixer struct {
	interval time.Duration
	send     func(frame []byte) error
	queue    chan []byte
	stop     chan struct{}
	done     chan struct{}
}

// NewMixer builds a mixer using the spec-default interval and queue
// depth. send is called once per tick with the exact bytes to put on the
// wire (already padded-ladder-sized; the caller must not re-pad).
func NewMixer(send func(frame []byte) error) *Mixer {
	return NewMixerWithShape(defaultMixerInterval, defaultMixerQueueDepth, send)
}

// NewMixerWithShape builds a mixer with an explicit tick interval and
// queue depth, primarily for tests that cannot wait on the real 100ms
// cadence.
func NewMixerWithShape(interval time.Duration, queueDepth int, send func(frame []byte) error) *Mixer {
	return &Mixer{
		interval: interval,
		send:     send,
		queue:    make(chan []byte, queueDepth),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue offers a real, already-padded frame for the next tick. It
// never blocks: a full queue means the mixer cannot keep up, reported as
// errs.ErrQueueFull so callers can apply backpressure upstream rather
// than silently buffering unboundedly.
func (m *Mixer) Enqueue(frame []byte) error {
	marked := append([]byte{frameReal}, frame...)
	select {
	case m.queue <- marked:
		return nil
	default:
		return errs.ErrQueueFull
	}
}

// Run drains the queue at the configured constant rate until Stop is
// called. It is meant to be launched with `go mixer.Run()`.
func (m *Mixer) Run() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			frame := m.nextFrame()
			_ = m.send(frame) // transport errors are the network layer's concern, not the mixer's
		}
	}
}

func (m *Mixer) nextFrame() []byte {
	select {
	case frame := <-m.queue:
		return frame
	default:
		return dummyFrame()
	}
}

// Stop halts Run and waits for it to return.
func (m *Mixer) Stop() {
	close(m.stop)
	<-m.done
}

// dummyFrame produces cover traffic at a random padding-ladder size, so
// dummy and real frames are drawn from the same length distribution.
func dummyFrame() []byte {
	rung := paddingLadder[pickRung()]
	frame := make([]byte, 1+rung)
	frame[0] = frameDummy
	_, _ = rand.Read(frame[1:])
	return frame
}

func pickRung() int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(paddingLadder))))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

// IsDummyFrame reports whether a frame produced by Mixer (Enqueue's
// output, over the wire, as delivered to send) is cover traffic, and
// returns the real payload when it is not.
func IsDummyFrame(frame []byte) (isDummy bool, payload []byte) {
	if len(frame) == 0 {
		return true, nil
	}
	return frame[0] == frameDummy, frame[1:]
}
