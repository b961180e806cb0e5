package entity

import (
	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/world"
)

// MoneyPopupLifetime is how many ticks a floating cost stays on screen.
const MoneyPopupLifetime = 64

// SpawnMoneyPopup creates the short-lived floating text shown after a
// company pays for a command. It draws from the money reserve first.
func (s *Store) SpawnMoneyPopup(pos world.Pos3, owner company.ID, amount finance.Money) (ID, error) {
	r, err := s.Create(CategoryMoney)
	if err != nil {
		return Null, err
	}
	r.Subtype = MiscMoneyPopup
	r.Owner = owner
	r.Amount = amount
	r.Lifetime = MoneyPopupLifetime
	r.Sprite = SpriteBounds{Width: 64, HeightNeg: 20, HeightPos: 8}
	if err := s.MoveTo(r.ID, pos); err != nil {
		return Null, err
	}
	return r.ID, nil
}
