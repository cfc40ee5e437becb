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

package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram_EvalBool(t *testing.T) {
	p, err := Compile(`json(payload).a == "b"`)
	require.NoError(t, err)
	ok, err := p.EvalBool([]byte(`{"a": "b"}`))
	assert.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.EvalBool([]byte(`{"a": "c"}`))
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = p.EvalBool([]byte(`not json`))
	assert.Error(t, err)
}

func TestProgram_EvalString(t *testing.T) {
	p, err := Compile(`json(payload).item[1].id`)
	require.NoError(t, err)
	s, err := p.EvalString([]byte(`{"item": [{"id": 1}, {"id": 2}]}`))
	assert.NoError(t, err)
	assert.Equal(t, "2", s)

	p, err = Compile(`sprig.trim(string(payload))`)
	require.NoError(t, err)
	s, err = p.EvalString([]byte("  x  "))
	assert.NoError(t, err)
	assert.Equal(t, "x", s)
}

func TestProgram_NotBool(t *testing.T) {
	p, err := Compile(`int(payload) + 1`)
	require.NoError(t, err)
	_, err = p.EvalBool([]byte("1"))
	assert.Error(t, err)
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`ab\na`)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unable to compile expression")
}

func Test_helpers(t *testing.T) {
	assert.Nil(t, _json(nil))
	assert.Panics(t, func() { _json("abc") })
	assert.Panics(t, func() { _json(222) })
	assert.Equal(t, "b", _json([]byte(`{"a": "b"}`))["a"])
	assert.Equal(t, 1, _int("1"))
	assert.Equal(t, 1, _int(1.2))
	assert.Panics(t, func() { _int("") })
	assert.Equal(t, "444", _string(444))
	assert.Equal(t, "", _string(nil))
}
