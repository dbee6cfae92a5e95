// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishOrderPerSubscriber(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe(KindPTYCreated, func(ev Event) {
		got = append(got, ev.(PTYCreated).Info.ID)
	})

	b.Publish(PTYCreated{Info: PTYInfo{ID: "a"}})
	b.Publish(PTYCreated{Info: PTYInfo{ID: "b"}})
	b.Publish(PTYCreated{Info: PTYInfo{ID: "c"}})

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	unsub := b.Subscribe(KindPTYDeleted, func(Event) { count++ })

	b.Publish(PTYDeleted{ID: "x"})
	unsub()
	b.Publish(PTYDeleted{ID: "x"})

	require.Equal(t, 1, count)

	// Calling unsub twice must not panic or double-remove another
	// subscriber registered after it.
	unsub()
}

func TestSubscribersOnlyReceiveTheirKind(t *testing.T) {
	b := New()
	var ptyEvents, mcpEvents int
	b.Subscribe(KindPTYCreated, func(Event) { ptyEvents++ })
	b.Subscribe(KindMCPStatus, func(Event) { mcpEvents++ })

	b.Publish(PTYCreated{Info: PTYInfo{ID: "a"}})
	b.Publish(MCPStatusChanged{Name: "serverA", Status: "connected"})
	b.Publish(MCPStatusChanged{Name: "serverB", Status: "needs_auth"})

	assert.Equal(t, 1, ptyEvents)
	assert.Equal(t, 2, mcpEvents)
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := New()
	a, c := 0, 0
	b.Subscribe(KindPTYExited, func(Event) { a++ })
	b.Subscribe(KindPTYExited, func(Event) { c++ })

	b.Publish(PTYExited{ID: "s1", ExitCode: 0})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, c)
}
