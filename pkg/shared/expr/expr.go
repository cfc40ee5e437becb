/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package expr evaluates expressions over element payloads. The payload is exposed as `payload`, next to
// the helpers json, int, string and the sprig function map.
package expr

import (
	"fmt"
	"strconv"

	"github.com/Masterminds/sprig/v3"
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/goccy/go-json"
)

const root = "payload"

var sprigFuncMap = sprig.GenericFuncMap()

// Program is a compiled expression, it is safe for concurrent use.
type Program struct {
	expression string
	program    *vm.Program
}

// Compile compiles the expression.
func Compile(expression string) (*Program, error) {
	program, err := expr.Compile(expression, expr.Env(env(nil)))
	if err != nil {
		return nil, fmt.Errorf("unable to compile expression '%s': %s", expression, err)
	}
	return &Program{expression: expression, program: program}, nil
}

// String returns the source of the expression.
func (p *Program) String() string {
	return p.expression
}

func (p *Program) run(payload []byte) (interface{}, error) {
	result, err := runSafe(p.program, env(payload))
	if err != nil {
		return nil, fmt.Errorf("unable to evaluate expression '%s': %s", p.expression, err)
	}
	return result, nil
}

// EvalBool evaluates the expression to a bool.
func (p *Program) EvalBool(payload []byte) (bool, error) {
	result, err := p.run(payload)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unable to cast expression result '%v' to bool", result)
	}
	return b, nil
}

// EvalString evaluates the expression and formats the result.
func (p *Program) EvalString(payload []byte) (string, error) {
	result, err := p.run(payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", result), nil
}

// runSafe turns the panics of the helpers into errors.
func runSafe(program *vm.Program, env map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return expr.Run(program, env)
}

func env(payload []byte) map[string]interface{} {
	return map[string]interface{}{
		root:     string(payload),
		"sprig":  sprigFuncMap,
		"json":   _json,
		"int":    _int,
		"string": _string,
	}
}

func _int(v interface{}) int {
	switch w := v.(type) {
	case []byte:
		return atoi(string(w))
	case string:
		return atoi(w)
	case float64:
		return int(w)
	case int:
		return w
	default:
		panic(fmt.Errorf("cannot convert %q to int", v))
	}
}

func atoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		panic(fmt.Errorf("cannot convert %q to int", s))
	}
	return i
}

func _string(v interface{}) string {
	switch w := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(w)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func _json(v interface{}) map[string]interface{} {
	var data []byte
	switch w := v.(type) {
	case nil:
		return nil
	case []byte:
		data = w
	case string:
		data = []byte(w)
	default:
		panic("unknown type")
	}
	x := make(map[string]interface{})
	if err := json.Unmarshal(data, &x); err != nil {
		panic(fmt.Errorf("cannot convert %q to object: %v", v, err))
	}
	return x
}
