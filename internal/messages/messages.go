package messages

import (
	"fmt"
	"os"
	"strings"

	"github.com/locogo/server/internal/finance"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// StringID identifies a user-facing message.
type StringID uint16

const Null StringID = 0xFFFF

const (
	TitleCantBuildHere StringID = iota + 1
	TitleCantRemove
	TitleCantBuyVehicle
	TitleCantSellVehicle
	TitleCantPlaceVehicle
	TitleCantRename
	TitleCantClearLand
	TitleCantDoThis

	ErrNotEnoughCash
	ErrCantDoWhilePaused
	ErrTooManyObjects
	ErrInvalidTarget
	ErrAlreadyBuiltHere
	ErrNothingHere
	ErrNameInUse
	ErrEmptyName
	ErrNotImplemented
	ErrVehicleNotInDepot

	OwnedTrack
	OwnedRoad
	OwnedStation
	OwnedSignal
	BelongsTo

	PopupCost
	PopupIncome

	stringCount
)

var names = [stringCount]string{
	TitleCantBuildHere:    "title_cant_build_here",
	TitleCantRemove:       "title_cant_remove",
	TitleCantBuyVehicle:   "title_cant_buy_vehicle",
	TitleCantSellVehicle:  "title_cant_sell_vehicle",
	TitleCantPlaceVehicle: "title_cant_place_vehicle",
	TitleCantRename:       "title_cant_rename",
	TitleCantClearLand:    "title_cant_clear_land",
	TitleCantDoThis:       "title_cant_do_this",
	ErrNotEnoughCash:      "not_enough_cash",
	ErrCantDoWhilePaused:  "cant_do_while_paused",
	ErrTooManyObjects:     "too_many_objects",
	ErrInvalidTarget:      "invalid_target",
	ErrAlreadyBuiltHere:   "already_built_here",
	ErrNothingHere:        "nothing_here",
	ErrNameInUse:          "name_in_use",
	ErrEmptyName:          "empty_name",
	ErrNotImplemented:     "not_implemented",
	ErrVehicleNotInDepot:  "vehicle_not_in_depot",
	OwnedTrack:            "owned_track",
	OwnedRoad:             "owned_road",
	OwnedStation:          "owned_station",
	OwnedSignal:           "owned_signal",
	BelongsTo:             "belongs_to",
	PopupCost:             "popup_cost",
	PopupIncome:           "popup_income",
}

var defaults = [stringCount]string{
	TitleCantBuildHere:    "Can't build this here...",
	TitleCantRemove:       "Can't remove this...",
	TitleCantBuyVehicle:   "Can't buy vehicle...",
	TitleCantSellVehicle:  "Can't sell vehicle...",
	TitleCantPlaceVehicle: "Can't place vehicle here...",
	TitleCantRename:       "Can't rename company...",
	TitleCantClearLand:    "Can't clear this land...",
	TitleCantDoThis:       "Can't do this...",
	ErrNotEnoughCash:      "Not enough cash - requires {amount}",
	ErrCantDoWhilePaused:  "Can't do this while the game is paused",
	ErrTooManyObjects:     "Too many objects in game",
	ErrInvalidTarget:      "Invalid target",
	ErrAlreadyBuiltHere:   "Something is already built here",
	ErrNothingHere:        "Nothing to remove here",
	ErrNameInUse:          "Name already in use",
	ErrEmptyName:          "Name must not be empty",
	ErrNotImplemented:     "Not available",
	ErrVehicleNotInDepot:  "Vehicle must be stopped in depot",
	OwnedTrack:            "Track owned by {company}",
	OwnedRoad:             "Road owned by {company}",
	OwnedStation:          "{name} is owned by {company}",
	OwnedSignal:           "Signal owned by {company}",
	BelongsTo:             "Belongs to {company}",
	PopupCost:             "-{amount}",
	PopupIncome:           "+{amount}",
}

func (id StringID) String() string {
	if id < stringCount && names[id] != "" {
		return names[id]
	}
	if id == Null {
		return "null"
	}
	return fmt.Sprintf("StringID(%d)", uint16(id))
}

// ParseStringID maps a data-file name to its id.
func ParseStringID(s string) (StringID, error) {
	for i, n := range names {
		if n == s && n != "" {
			return StringID(i), nil
		}
	}
	return Null, fmt.Errorf("unknown string %q", s)
}

// Args fills the placeholders of a message.
type Args struct {
	Company string
	Name    string
	Amount  finance.Money
}

// Table resolves string ids to localized text.
type Table struct {
	text     [stringCount]string
	currency string
	printer  *message.Printer
}

// NewTable returns the built-in English table.
func NewTable() *Table {
	t := &Table{text: defaults, currency: "£", printer: message.NewPrinter(language.BritishEnglish)}
	return t
}

type stringsFile struct {
	Language string            `yaml:"language"`
	Currency string            `yaml:"currency"`
	Strings  map[string]string `yaml:"strings"`
}

// LoadTable loads overrides from a YAML string file on top of the defaults.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strings: %w", err)
	}
	var f stringsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse strings: %w", err)
	}
	t := NewTable()
	if f.Language != "" {
		tag, err := language.Parse(f.Language)
		if err != nil {
			return nil, fmt.Errorf("strings language %q: %w", f.Language, err)
		}
		t.printer = message.NewPrinter(tag)
	}
	if f.Currency != "" {
		t.currency = f.Currency
	}
	for name, text := range f.Strings {
		id, err := ParseStringID(name)
		if err != nil {
			return nil, err
		}
		t.text[id] = text
	}
	return t, nil
}

// Count returns the number of known strings.
func (t *Table) Count() int { return int(stringCount) - 1 }

// Money formats an amount with grouping and the currency symbol, ignoring sign.
func (t *Table) Money(m finance.Money) string {
	if m < 0 {
		m = -m
	}
	return t.currency + t.printer.Sprintf("%d", int64(m))
}

// Format resolves id and substitutes args.
func (t *Table) Format(id StringID, args Args) string {
	if id >= stringCount || t.text[id] == "" {
		return id.String()
	}
	r := strings.NewReplacer(
		"{company}", args.Company,
		"{name}", args.Name,
		"{amount}", t.Money(args.Amount),
	)
	return r.Replace(t.text[id])
}

// Popup returns the floating text for a settled amount: costs show as
// negative, income as positive.
func (t *Table) Popup(amount finance.Money) string {
	if amount < 0 {
		return t.Format(PopupIncome, Args{Amount: amount})
	}
	return t.Format(PopupCost, Args{Amount: amount})
}
