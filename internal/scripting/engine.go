package scripting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the legacy command bodies.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Shared helpers first, then command bodies
	for _, sub := range []string{"core", "commands"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("已載入 lua 腳本", zap.String("file", path))
	}
	return nil
}

// Has reports whether a global function with the given name exists.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// RunLegacy calls the global Lua function named by handle as
//
//	cost, err = handle(ctx, args, apply)
//
// A numeric cost means success. A nil cost with a string names the message
// id of the failure. ctx exposes the transaction to the script.
func (e *Engine) RunLegacy(handle string, tx *command.Transaction, args any, flags command.Flags) (finance.Money, error) {
	fn, ok := e.vm.GetGlobal(handle).(*lua.LFunction)
	if !ok {
		e.log.Error("找不到 lua 指令函式", zap.String("handle", handle))
		return 0, command.FailWith(command.ReasonUnbound, messages.ErrNotImplemented, messages.Args{})
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, e.newContext(tx, flags), toLua(e.vm, args), lua.LBool(flags.Has(command.FlagApply))); err != nil {
		e.log.Error("lua 指令執行錯誤", zap.String("handle", handle), zap.Error(err))
		return 0, fmt.Errorf("lua %s: %w", handle, err)
	}

	ret, msg := e.vm.Get(-2), e.vm.Get(-1)
	e.vm.Pop(2)

	if n, ok := ret.(lua.LNumber); ok {
		return finance.Money(n), nil
	}
	if msg == lua.LNil {
		return 0, command.Fail(messages.ErrInvalidTarget)
	}
	id, err := messages.ParseStringID(lua.LVAsString(msg))
	if err != nil {
		return 0, fmt.Errorf("lua %s: %w", handle, err)
	}
	return 0, command.Fail(id)
}

// newContext builds the ctx table handed to a command body.
func (e *Engine) newContext(tx *command.Transaction, flags command.Flags) *lua.LTable {
	L := e.vm
	ctx := L.NewTable()
	ctx.RawSetString("company", lua.LNumber(tx.Company()))
	ctx.RawSetString("depth", lua.LNumber(tx.Depth()))

	ctx.RawSetString("set_position", L.NewFunction(func(L *lua.LState) int {
		tx.SetPosition(world.Pos3{
			X: int16(L.CheckInt(1)),
			Y: int16(L.CheckInt(2)),
			Z: int16(L.OptInt(3, 0)),
		})
		return 0
	}))

	ctx.RawSetString("set_expenditure", L.NewFunction(func(L *lua.LState) int {
		exp, err := finance.ParseExpenditure(L.CheckString(1))
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		tx.SetExpenditure(exp)
		return 0
	}))

	// execute(kind, args) runs a sub-command with the caller's flags and
	// returns cost or nil plus the failure message name.
	ctx.RawSetString("execute", L.NewFunction(func(L *lua.LState) int {
		kind, err := command.ParseKind(L.CheckString(1))
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		desc, ok := tx.Lookup(kind)
		if !ok {
			L.RaiseError("unknown kind %s", kind)
			return 0
		}
		raw, err := json.Marshal(toGo(L.OptTable(2, L.NewTable())))
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		subArgs, err := desc.DecodeArgs(raw)
		if err != nil {
			L.RaiseError("decode %s args: %v", kind, err)
			return 0
		}
		cost, err := tx.Execute(command.Invocation{Kind: kind, Flags: flags, Args: subArgs})
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(command.AsFailure(err).Message.String()))
			return 2
		}
		L.Push(lua.LNumber(cost))
		return 1
	}))
	return ctx
}

// VehicleRefund evaluates the scripted resale formula, falling back to the
// purchase price when no formula is loaded.
func (e *Engine) VehicleRefund(price finance.Money, ageTicks int) finance.Money {
	if !e.Has("vehicle_refund") {
		return price
	}
	return finance.Money(e.callIntFunc("vehicle_refund", int(price), ageTicks))
}

// toLua converts a command payload into a Lua value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return L.NewTable()
	case command.LegacyArgs:
		return toLua(L, map[string]any(x))
	case map[string]any:
		t := L.NewTable()
		for k, val := range x {
			t.RawSetString(k, toLua(L, val))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, val := range x {
			t.Append(toLua(L, val))
		}
		return t
	case string:
		return lua.LString(x)
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	default:
		// Typed payloads go through their JSON form.
		raw, err := json.Marshal(x)
		if err != nil {
			return lua.LNil
		}
		var m any
		if err := json.Unmarshal(raw, &m); err != nil {
			return lua.LNil
		}
		return toLua(L, m)
	}
}

// toGo converts a Lua value into plain Go data. Tables with a positive
// length become slices, others maps.
func toGo(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	case lua.LBool:
		return bool(x)
	case *lua.LTable:
		if n := x.Len(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, toGo(x.RawGetInt(i)))
			}
			return out
		}
		out := map[string]any{}
		x.ForEach(func(k, val lua.LValue) {
			out[lua.LVAsString(k)] = toGo(val)
		})
		return out
	default:
		return nil
	}
}

// callIntFunc calls a Lua function with int args and returns an int result.
func (e *Engine) callIntFunc(name string, args ...int) int {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Error("找不到 lua 函式", zap.String("name", name))
		return 0
	}

	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		e.log.Error("lua 呼叫錯誤", zap.String("func", name), zap.Error(err))
		return 0
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int(lua.LVAsNumber(result))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
