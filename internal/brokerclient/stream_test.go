package brokerclient

import (
	"io"
	"log/slog"
	"testing"
)

type fakeNotifier struct {
	calls int
}

func (f *fakeNotifier) ForceUpdate() { f.calls++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleMessage_NewDataTriggersForceUpdate(t *testing.T) {
	notifier := &fakeNotifier{}
	s := &Stream{notifier: notifier, logger: discardLogger()}

	s.handleMessage([]byte(`{"type":"new_data"}`))
	if notifier.calls != 1 {
		t.Fatalf("expected ForceUpdate to be called once, got %d", notifier.calls)
	}
}

func TestHandleMessage_OtherTypesIgnored(t *testing.T) {
	notifier := &fakeNotifier{}
	s := &Stream{notifier: notifier, logger: discardLogger()}

	s.handleMessage([]byte(`{"type":"heartbeat"}`))
	if notifier.calls != 0 {
		t.Fatalf("expected no ForceUpdate call for a non-new_data message")
	}
}

func TestHandleMessage_UnparseableMessageIgnored(t *testing.T) {
	notifier := &fakeNotifier{}
	s := &Stream{notifier: notifier, logger: discardLogger()}

	s.handleMessage([]byte(`not json`))
	if notifier.calls != 0 {
		t.Fatalf("expected no ForceUpdate call for an unparseable message")
	}
}
