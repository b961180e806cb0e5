package handler

import (
	"errors"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/core/entity"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap"
)

// VehicleCreateArgs buys a vehicle of the given model into the company depot.
type VehicleCreateArgs struct {
	Model uint8 `json:"model"`
}

// VehicleArgs names an existing vehicle.
type VehicleArgs struct {
	Vehicle entity.ID `json:"vehicle"`
}

// VehiclePlaceArgs puts a depot vehicle onto a track tile.
type VehiclePlaceArgs struct {
	Vehicle entity.ID `json:"vehicle"`
	X       int16     `json:"x"`
	Y       int16     `json:"y"`
	Z       int16     `json:"z"`
	Heading uint8     `json:"heading"`
}

// VehicleCreate allocates a vehicle record and charges its price.
func VehicleCreate(tx *command.Transaction, a VehicleCreateArgs, flags command.Flags, deps *Deps) (finance.Money, error) {
	model := deps.Prices.Vehicle(a.Model)
	if model == nil {
		return 0, command.Fail(messages.ErrInvalidTarget)
	}
	tx.SetExpenditure(finance.ExpVehiclePurchases)
	if !flags.Has(command.FlagApply) {
		if !deps.Entities.CanCreate(entity.CategoryVehicle) {
			return 0, command.FailWith(command.ReasonPoolExhausted, messages.ErrTooManyObjects, messages.Args{})
		}
		return model.Price, nil
	}

	r, err := deps.Entities.Create(entity.CategoryVehicle)
	if err != nil {
		if errors.Is(err, entity.ErrPoolExhausted) {
			return 0, command.FailWith(command.ReasonPoolExhausted, messages.ErrTooManyObjects, messages.Args{})
		}
		return 0, err
	}
	r.Subtype = model.ID
	r.Owner = tx.Company()
	r.Amount = model.Price
	r.Speed = model.Speed
	deps.Log.Debug("購買車輛",
		zap.Uint16("vehicle", uint16(r.ID)),
		zap.String("model", model.Name),
		zap.Stringer("company", tx.Company()),
	)
	return model.Price, nil
}

// ownedVehicle resolves a vehicle the acting company may operate on.
func ownedVehicle(tx *command.Transaction, id entity.ID, deps *Deps) (*entity.Record, error) {
	r := deps.Entities.Live(id)
	if r == nil || r.Category != entity.CategoryVehicle {
		return nil, command.Fail(messages.ErrInvalidTarget)
	}
	if err := command.CheckOwnership(tx.Company(), r.Owner, nil); err != nil {
		return nil, err
	}
	return r, nil
}

// VehicleSell refunds a depot vehicle and frees its record.
func VehicleSell(tx *command.Transaction, a VehicleArgs, flags command.Flags, deps *Deps) (finance.Money, error) {
	r, err := ownedVehicle(tx, a.Vehicle, deps)
	if err != nil {
		return 0, err
	}
	if !r.Position().IsNull() {
		return 0, command.Fail(messages.ErrVehicleNotInDepot)
	}
	tx.SetExpenditure(finance.ExpVehiclePurchases)

	refund := deps.Prices.Refund(r.Amount)
	if deps.Refunds != nil {
		refund = deps.Refunds.VehicleRefund(r.Amount, int(r.Age))
	}
	if flags.Has(command.FlagApply) {
		if err := deps.Entities.Free(r.ID); err != nil {
			return 0, err
		}
	}
	return -refund, nil
}

// VehiclePlace moves a depot vehicle onto a track tile of its owner.
func VehiclePlace(tx *command.Transaction, a VehiclePlaceArgs, flags command.Flags, deps *Deps) (finance.Money, error) {
	r, err := ownedVehicle(tx, a.Vehicle, deps)
	if err != nil {
		return 0, err
	}
	if !r.Position().IsNull() {
		return 0, command.Fail(messages.ErrInvalidTarget)
	}
	pos := world.Pos3{X: a.X, Y: a.Y, Z: a.Z}
	tile := pos.Tile()
	if err := onMap(tile, deps); err != nil {
		return 0, err
	}
	track, ok := deps.World.Tiles.Find(tile, world.ElementTrack)
	if !ok {
		return 0, command.Fail(messages.ErrInvalidTarget)
	}
	ref := world.Ref(tile, track)
	if err := command.CheckOwnership(tx.Company(), track.Owner, &ref); err != nil {
		return 0, err
	}
	tx.SetPosition(pos)
	if flags.Has(command.FlagApply) {
		if err := deps.Entities.MoveTo(r.ID, pos); err != nil {
			return 0, err
		}
		r.Heading = a.Heading & 3
	}
	return 0, nil
}

// VehiclePickup returns a placed vehicle to the depot.
func VehiclePickup(tx *command.Transaction, a VehicleArgs, flags command.Flags, deps *Deps) (finance.Money, error) {
	r, err := ownedVehicle(tx, a.Vehicle, deps)
	if err != nil {
		return 0, err
	}
	if r.Position().IsNull() {
		return 0, command.Fail(messages.ErrInvalidTarget)
	}
	tx.SetPosition(r.Position())
	if flags.Has(command.FlagApply) {
		if err := deps.Entities.MoveTo(r.ID, world.NullPos); err != nil {
			return 0, err
		}
	}
	return 0, nil
}
