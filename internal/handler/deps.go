package handler

import (
	"fmt"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/core/entity"
	"github.com/locogo/server/internal/data"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap"
)

// RefundFormula prices a used vehicle. *scripting.Engine implements it.
type RefundFormula interface {
	VehicleRefund(price finance.Money, ageTicks int) finance.Money
}

// Deps holds shared dependencies injected into all command bodies.
type Deps struct {
	World    *world.State
	Entities *entity.Store
	Prices   *data.PriceList
	Refunds  RefundFormula // optional; falls back to the price list ratio
	Log      *zap.Logger
}

// RegisterAll binds every native command body into the table builder.
// Kinds bound here override legacy script handles from the data file.
func RegisterAll(b *command.Builder, deps *Deps) error {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	binds := []struct {
		kind command.Kind
		h    command.Handler
	}{
		// Vehicles
		{command.KindVehicleCreate, command.Bind(func(tx *command.Transaction, a VehicleCreateArgs, f command.Flags) (finance.Money, error) {
			return VehicleCreate(tx, a, f, deps)
		})},
		{command.KindVehicleSell, command.Bind(func(tx *command.Transaction, a VehicleArgs, f command.Flags) (finance.Money, error) {
			return VehicleSell(tx, a, f, deps)
		})},
		{command.KindVehiclePlace, command.Bind(func(tx *command.Transaction, a VehiclePlaceArgs, f command.Flags) (finance.Money, error) {
			return VehiclePlace(tx, a, f, deps)
		})},
		{command.KindVehiclePickup, command.Bind(func(tx *command.Transaction, a VehicleArgs, f command.Flags) (finance.Money, error) {
			return VehiclePickup(tx, a, f, deps)
		})},

		// Construction
		{command.KindTrackPlace, command.Bind(func(tx *command.Transaction, a TrackArgs, f command.Flags) (finance.Money, error) {
			return TrackPlace(tx, a, f, deps)
		})},
		{command.KindTrackRemove, command.Bind(func(tx *command.Transaction, a TrackArgs, f command.Flags) (finance.Money, error) {
			return TrackRemove(tx, a, f, deps)
		})},
		{command.KindClearLand, command.Bind(func(tx *command.Transaction, a TileArgs, f command.Flags) (finance.Money, error) {
			return ClearLand(tx, a, f, deps)
		})},

		// Company
		{command.KindCompanyRename, command.Bind(func(tx *command.Transaction, a RenameArgs, f command.Flags) (finance.Money, error) {
			return CompanyRename(tx, a, f, deps)
		})},
	}
	for _, e := range binds {
		if err := b.Bind(e.kind, e.h); err != nil {
			return fmt.Errorf("register %s: %w", e.kind, err)
		}
	}
	deps.Log.Debug("已註冊指令處理器", zap.Int("count", len(binds)))
	return nil
}
