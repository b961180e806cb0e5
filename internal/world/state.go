package world

import (
	"github.com/locogo/server/internal/company"
)

// PauseFlags records why the game is paused. Only PauseUser is cleared by
// unpausing commands; the others keep the game paused until their owner
// releases them.
type PauseFlags uint8

const (
	PauseUser PauseFlags = 1 << iota
	PauseModal
	PauseNetwork
)

// GameSpeed is the simulation speed setting.
type GameSpeed uint8

const (
	SpeedNormal GameSpeed = iota
	SpeedFast
	SpeedFaster
)

// Mode is the overall game mode.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeEditor      // scenario editor: commands cost nothing
	ModeTitle
)

// State holds the process-wide simulation state the command core consults:
// pause/speed, game mode, networking, companies and the owned tile map.
// Accessed only from the game loop goroutine; no locks needed.
type State struct {
	Companies *company.Registry
	Tiles     *TileMap

	pause           PauseFlags
	speed           GameSpeed
	mode            Mode
	localCompany    company.ID
	networked       bool
	suppressUnpause bool

	// PauseInvalidated is bumped whenever pause state changes so UI layers can
	// redraw the pause button.
	PauseInvalidated uint32
}

func NewState(local company.ID) *State {
	return &State{
		Companies:    company.NewRegistry(),
		Tiles:        NewTileMap(),
		localCompany: local,
	}
}

func (s *State) LocalCompany() company.ID      { return s.localCompany }
func (s *State) SetLocalCompany(id company.ID) { s.localCompany = id }
func (s *State) IsNetworked() bool             { return s.networked }
func (s *State) SetNetworked(v bool)           { s.networked = v }
func (s *State) Mode() Mode                    { return s.mode }
func (s *State) SetMode(m Mode)                { s.mode = m }
func (s *State) PauseFlags() PauseFlags        { return s.pause }
func (s *State) IsPaused() bool                { return s.pause != 0 }
func (s *State) GameSpeed() GameSpeed          { return s.speed }
func (s *State) SetGameSpeed(v GameSpeed)      { s.speed = v }
func (s *State) UnpauseSuppressed() bool       { return s.suppressUnpause }
func (s *State) SetUnpauseSuppressed(v bool)   { s.suppressUnpause = v }
func (s *State) CostsSuppressed() bool         { return s.mode == ModeEditor }

// CompanyName resolves a company name for messages.
func (s *State) CompanyName(id company.ID) string { return s.Companies.Name(id) }

// SetPauseFlag sets or clears one pause reason.
func (s *State) SetPauseFlag(f PauseFlags, on bool) {
	if on {
		s.pause |= f
	} else {
		s.pause &^= f
	}
	s.PauseInvalidated++
}

// Unpause clears the user pause and resets the speed to normal. The game may
// still be paused afterwards for other reasons.
func (s *State) Unpause() {
	if s.pause&PauseUser != 0 {
		s.pause &^= PauseUser
	}
	s.speed = SpeedNormal
	s.PauseInvalidated++
}
