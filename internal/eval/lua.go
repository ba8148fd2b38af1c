package eval

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Lua is the alternate `$` expression evaluator, demonstrating that the
// expression marker is genuinely pluggable (spec §9). Grounded on
// the retrieval pack's sandboxed Lua VM: the dangerous os/io/loader
// globals are stripped before any user expression runs, and the result
// is read off the VM's return value.
type Lua struct {
	timeout time.Duration
}

// NewLua returns the alternate evaluator, selectable via
// sparkwheel.WithEvaluator(eval.NewLua(0)).
func NewLua(timeout time.Duration) *Lua {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Lua{timeout: timeout}
}

func (e *Lua) Eval(ctx context.Context, source string, bindings map[string]any, namespace map[string]any) (any, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := e.evalSync(source, bindings, namespace)
		done <- outcome{val: v, err: err}
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("eval: lua expression timed out after %s: %q", e.timeout, source)
	case o := <-done:
		return o.val, o.err
	}
}

func (e *Lua) evalSync(source string, bindings, namespace map[string]any) (any, error) {
	L := lua.NewState()
	defer L.Close()
	sandbox(L)

	for k, v := range namespace {
		lv, err := toLuaValue(L, v)
		if err != nil {
			return nil, fmt.Errorf("eval: converting namespace entry %q: %w", k, err)
		}
		L.SetGlobal(k, lv)
	}
	for k, v := range bindings {
		lv, err := toLuaValue(L, v)
		if err != nil {
			return nil, fmt.Errorf("eval: converting binding %q: %w", k, err)
		}
		L.SetGlobal(k, lv)
	}

	if err := L.DoString("return " + source); err != nil {
		return nil, fmt.Errorf("eval: lua evaluation failed: %w", err)
	}
	if L.GetTop() == 0 {
		return nil, nil
	}
	result := L.Get(-1)
	L.Pop(1)
	return fromLuaValue(result)
}

// sandbox strips globals that would let an expression touch the
// filesystem, spawn processes, or load arbitrary code, per the
// retrieval pack's sandboxed-VM pattern.
func sandbox(L *lua.LState) {
	for _, name := range []string{"os", "io", "require", "dofile", "loadfile", "load", "loadstring", "debug"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func toLuaValue(L *lua.LState, v any) (lua.LValue, error) {
	switch val := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(val), nil
	case int:
		return lua.LNumber(val), nil
	case int64:
		return lua.LNumber(val), nil
	case float64:
		return lua.LNumber(val), nil
	case string:
		return lua.LString(val), nil
	case []any:
		t := L.NewTable()
		for i, item := range val {
			lv, err := toLuaValue(L, item)
			if err != nil {
				return nil, err
			}
			t.RawSetInt(i+1, lv)
		}
		return t, nil
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			lv, err := toLuaValue(L, item)
			if err != nil {
				return nil, err
			}
			t.RawSetString(k, lv)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("eval: unsupported binding type %T", v)
	}
}

func fromLuaValue(v lua.LValue) (any, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(val), nil
	case lua.LNumber:
		f := float64(val)
		if f == float64(int64(f)) {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(val), nil
	case *lua.LTable:
		return fromLuaTable(val)
	default:
		return nil, fmt.Errorf("eval: unsupported lua result type %s", v.Type())
	}
}

// fromLuaTable distinguishes a Lua array table (1..N contiguous integer
// keys) from a map table by checking whether Len() accounts for every
// entry; Lua itself doesn't distinguish the two.
func fromLuaTable(t *lua.LTable) (any, error) {
	n := t.Len()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })
	if n == count {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			v, err := fromLuaValue(t.RawGetInt(i))
			if err != nil {
				return nil, err
			}
			out[i-1] = v
		}
		return out, nil
	}

	out := make(map[string]any, count)
	var rangeErr error
	t.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			rangeErr = fmt.Errorf("eval: lua table key must be a string, got %s", k.Type())
			return
		}
		gv, err := fromLuaValue(v)
		if err != nil {
			rangeErr = err
			return
		}
		out[string(ks)] = gv
	})
	if rangeErr != nil {
		return nil, rangeErr
	}
	return out, nil
}
