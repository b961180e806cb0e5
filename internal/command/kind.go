package command

import "fmt"

// Kind enumerates command kinds. Values are part of the network frame and
// journal format; append only.
type Kind uint8

const (
	KindVehicleRearrange Kind = iota
	KindVehiclePlace
	KindVehiclePickup
	KindVehicleReverse
	KindVehiclePassSignal
	KindVehicleCreate
	KindVehicleSell
	KindTrackPlace
	KindTrackRemove
	KindChangeLoan
	KindVehicleRename
	KindStationRename
	KindVehicleChangeRunningMode
	KindClearLand
	KindLowerLand
	KindRaiseLand
	KindLowerWater
	KindRaiseWater
	KindCompanyRename
	KindCompanyChangeColour
	KindRoadPlace
	KindRoadRemove
	KindSignalPlace
	KindSignalRemove
	KindStationPlace
	KindStationRemove
	KindTreePlace
	KindTreeRemove
	KindVehicleOrderInsert
	KindVehicleOrderDelete
	KindPauseGame
	KindLoadSaveQuit
	kindCount
)

var kindNames = [kindCount]string{
	KindVehicleRearrange:         "vehicle_rearrange",
	KindVehiclePlace:             "vehicle_place",
	KindVehiclePickup:            "vehicle_pickup",
	KindVehicleReverse:           "vehicle_reverse",
	KindVehiclePassSignal:        "vehicle_pass_signal",
	KindVehicleCreate:            "vehicle_create",
	KindVehicleSell:              "vehicle_sell",
	KindTrackPlace:               "track_place",
	KindTrackRemove:              "track_remove",
	KindChangeLoan:               "change_loan",
	KindVehicleRename:            "vehicle_rename",
	KindStationRename:            "station_rename",
	KindVehicleChangeRunningMode: "vehicle_change_running_mode",
	KindClearLand:                "clear_land",
	KindLowerLand:                "lower_land",
	KindRaiseLand:                "raise_land",
	KindLowerWater:               "lower_water",
	KindRaiseWater:               "raise_water",
	KindCompanyRename:            "company_rename",
	KindCompanyChangeColour:      "company_change_colour",
	KindRoadPlace:                "road_place",
	KindRoadRemove:               "road_remove",
	KindSignalPlace:              "signal_place",
	KindSignalRemove:             "signal_remove",
	KindStationPlace:             "station_place",
	KindStationRemove:            "station_remove",
	KindTreePlace:                "tree_place",
	KindTreeRemove:               "tree_remove",
	KindVehicleOrderInsert:       "vehicle_order_insert",
	KindVehicleOrderDelete:       "vehicle_order_delete",
	KindPauseGame:                "pause_game",
	KindLoadSaveQuit:             "load_save_quit",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a data-file name to its kind.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown command kind %q", s)
}

// Flags modify how a single invocation is dispatched.
type Flags uint8

const (
	// FlagApply asks for the apply pass after a successful query pass.
	FlagApply Flags = 1 << iota
	// FlagAllowWhilePaused skips the unpause gating of top-level commits.
	FlagAllowWhilePaused
	// FlagSilent suppresses the error dialog on failure.
	FlagSilent
	// FlagAlreadyCharged skips ledger settlement; an ancestor pays.
	FlagAlreadyCharged
	// FlagGhost marks preview placements: no affordability check, no settlement.
	FlagGhost
)

func (f Flags) Has(o Flags) bool { return f&o == o }

// External strips the flags only in-process callers may set. Ghost and
// already-charged invocations skip settlement, so commands from clients and
// peers never carry them.
func (f Flags) External() Flags { return f &^ (FlagAlreadyCharged | FlagGhost) }
