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

package window

// Namespace is the (key, window) scope under which state and timers are addressed.
type Namespace struct {
	Key    string
	Window Window
}

// NewNamespace returns the namespace for the given key and window.
func NewNamespace(key string, w Window) Namespace {
	return Namespace{Key: key, Window: w}
}

// StringKey returns a string that uniquely identifies the namespace.
func (n Namespace) StringKey() string {
	if n.Window == nil {
		return n.Key + "/"
	}
	return n.Key + "/" + n.Window.ID()
}

// Equal reports whether both namespaces address the same key and window.
func (n Namespace) Equal(o Namespace) bool {
	return n.Key == o.Key && Equal(n.Window, o.Window)
}

func (n Namespace) String() string {
	return n.StringKey()
}
