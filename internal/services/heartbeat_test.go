package services

import (
	"testing"

	"presence-gateway/pkg/logger"
)

func TestSweepSendsKeepAliveToEveryConnection(t *testing.T) {
	registry := newFakeRegistry()
	conns := []*fakeConn{
		{id: "c1", userID: "user-1"},
		{id: "c2", userID: "user-1"},
		{id: "c3", userID: "user-2"},
	}
	for _, conn := range conns {
		registry.add(conn)
	}

	h := NewHeartbeat(registry, logger.NewNop())
	h.sweep()

	for _, conn := range conns {
		messages := conn.sentMessages()
		if len(messages) != 1 {
			t.Fatalf("Connection %s received %d frames, expected 1", conn.id, len(messages))
		}
		frame := messages[0]
		if frame.Channel != "" || frame.Error != "" || frame.Payload != nil {
			t.Errorf("Keep-alive frame carries data: %+v", frame)
		}
	}
}

func TestSweepContinuesAfterSendFailure(t *testing.T) {
	registry := newFakeRegistry()
	bad := &fakeConn{id: "c1", userID: "user-1", failSend: true}
	good := &fakeConn{id: "c2", userID: "user-2"}
	registry.add(bad)
	registry.add(good)

	h := NewHeartbeat(registry, logger.NewNop())
	h.sweep()

	if good.sentCount() != 1 {
		t.Error("Healthy connection missed its keep-alive after a peer send failure")
	}
}

func TestSweepWithNoConnections(t *testing.T) {
	h := NewHeartbeat(newFakeRegistry(), logger.NewNop())
	h.sweep()
}
