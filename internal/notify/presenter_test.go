package notify

import (
	"testing"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/messages"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPresenterFormatsAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewPresenter(messages.NewTable(), 4, zap.New(core))

	p.ShowError(messages.TitleCantBuildHere, messages.ErrNotEnoughCash, messages.Args{Amount: 1234567})
	p.ShowCompanyError(messages.TitleCantBuildHere, messages.OwnedStation,
		messages.Args{Company: "Rival Rail", Name: "Harbour Halt"}, 3)

	h := p.History()
	if len(h) != 2 {
		t.Fatalf("history = %d", len(h))
	}
	if h[0].Body != "Not enough cash - requires £1,234,567" || h[0].Owner != company.Null {
		t.Fatalf("first dialog %+v", h[0])
	}
	if h[1].Body != "Harbour Halt is owned by Rival Rail" || h[1].Owner != 3 {
		t.Fatalf("second dialog %+v", h[1])
	}
	if logs.Len() != 2 {
		t.Fatalf("logged %d dialogs", logs.Len())
	}
}

func TestPresenterHistoryBounded(t *testing.T) {
	p := NewPresenter(messages.NewTable(), 3, zap.NewNop())
	if _, ok := p.Last(); ok {
		t.Fatalf("empty presenter has a last dialog")
	}
	for _, id := range []messages.StringID{
		messages.ErrInvalidTarget,
		messages.ErrNothingHere,
		messages.ErrNameInUse,
		messages.ErrEmptyName,
	} {
		p.ShowError(messages.TitleCantDoThis, id, messages.Args{})
	}
	h := p.History()
	if len(h) != 3 {
		t.Fatalf("history = %d, want 3", len(h))
	}
	last, _ := p.Last()
	if h[0].Body != messages.NewTable().Format(messages.ErrNothingHere, messages.Args{}) ||
		last.Body != messages.NewTable().Format(messages.ErrEmptyName, messages.Args{}) {
		t.Fatalf("history %+v", h)
	}
}
