package notify

import (
	"sync"
	"time"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/messages"
	"go.uber.org/zap"
)

// Dialog is one error box shown to the local player.
type Dialog struct {
	Title string
	Body  string
	Owner company.ID // company whose face is shown, Null for plain errors
	At    time.Time
}

// Presenter renders command failures as text dialogs. With no UI attached it
// logs them and keeps the most recent ones for inspection.
type Presenter struct {
	table *messages.Table
	log   *zap.Logger
	limit int

	mu      sync.Mutex
	history []Dialog
}

func NewPresenter(table *messages.Table, limit int, log *zap.Logger) *Presenter {
	if limit <= 0 {
		limit = 32
	}
	return &Presenter{table: table, log: log, limit: limit}
}

// ShowError displays a titled error message.
func (p *Presenter) ShowError(title, msg messages.StringID, args messages.Args) {
	p.push(Dialog{
		Title: p.table.Format(title, args),
		Body:  p.table.Format(msg, args),
		Owner: company.Null,
		At:    time.Now(),
	})
}

// ShowCompanyError displays an error naming the owning company.
func (p *Presenter) ShowCompanyError(title, msg messages.StringID, args messages.Args, owner company.ID) {
	p.push(Dialog{
		Title: p.table.Format(title, args),
		Body:  p.table.Format(msg, args),
		Owner: owner,
		At:    time.Now(),
	})
}

func (p *Presenter) push(d Dialog) {
	p.log.Info("顯示錯誤訊息",
		zap.String("title", d.Title),
		zap.String("body", d.Body),
		zap.Stringer("owner", d.Owner),
	)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == p.limit {
		copy(p.history, p.history[1:])
		p.history = p.history[:p.limit-1]
	}
	p.history = append(p.history, d)
}

// History returns a copy of the retained dialogs, oldest first.
func (p *Presenter) History() []Dialog {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Dialog, len(p.history))
	copy(out, p.history)
	return out
}

// Last returns the most recent dialog.
func (p *Presenter) Last() (Dialog, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return Dialog{}, false
	}
	return p.history[len(p.history)-1], true
}
