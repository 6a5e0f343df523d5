/*
Copyright (c) 2024 Fsas Technologies Inc., or its subsidiaries. All Rights Reserved.

Licensed under the Mozilla Public License Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://mozilla.org/MPL/2.0/


Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package setter turns flat key=value command tokens into nested partial
// update bodies matching the property hierarchy of the target resource.
// The builder is purely structural; validating the result against the
// resource schema is the caller's concern.
package setter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParameter is returned for tokens not matching the
// [Key]=[Value] form.
var ErrInvalidParameter = errors.New("invalid set parameter format, expected [Key]=[Value]")

// attributesContainer is the settings attribute container implicitly
// prefixed for BIOS type selections.
const attributesContainer = "Attributes"

// Assignment is a parsed key=value token: the ordered property path
// segments and the typed leaf value.
type Assignment struct {
	Path  []string
	Value interface{}
}

// Parse splits a command token into an Assignment. biosSelected marks
// the currently selected type as the BIOS settings type, which makes
// paths without an attribute container reference implicitly nested
// under "Attributes".
func Parse(token string, biosSelected bool) (Assignment, error) {
	token = trimOuterQuotes(token)

	sel, rawVal, found := strings.Cut(token, "=")
	if !found {
		return Assignment{}, fmt.Errorf("%w: %q", ErrInvalidParameter, token)
	}

	sel = strings.TrimSpace(sel)
	if sel == "" {
		return Assignment{}, fmt.Errorf("%w: %q", ErrInvalidParameter, token)
	}

	if biosSelected && !strings.Contains(strings.ToLower(sel), strings.ToLower(attributesContainer)) {
		sel = attributesContainer + "/" + sel
	}

	return Assignment{
		Path:  strings.Split(sel, "/"),
		Value: parseLiteral(rawVal),
	}, nil
}

// Patch builds the nested single-key update body: the leaf value wrapped
// by every path segment from innermost to outermost, so the first path
// segment ends up as the outermost mapping key.
func (a Assignment) Patch() map[string]interface{} {
	leaf := a.Path[len(a.Path)-1]
	payload := map[string]interface{}{leaf: a.Value}

	for i := len(a.Path) - 2; i >= 0; i-- {
		payload = map[string]interface{}{a.Path[i]: payload}
	}

	return payload
}

// parseLiteral coerces the raw right-hand side. Boolean detection takes
// precedence over everything else; a bracketed literal becomes a list of
// strings split on "," with no support for escaped commas (known
// limitation of the file format, not silently fixed here).
func parseLiteral(raw string) interface{} {
	val := strings.Trim(raw, `"'`)

	switch strings.ToLower(val) {
	case "true":
		return true
	case "false":
		return false
	}

	if len(val) >= 2 && val[0] == '[' && val[len(val)-1] == ']' {
		return strings.Split(val[1:len(val)-1], ",")
	}

	return val
}

// trimOuterQuotes strips a single level of surrounding quote characters
// from a whole token. A token of exactly two matching quotes collapses
// to the empty token.
func trimOuterQuotes(token string) string {
	if len(token) < 2 {
		return token
	}

	first, last := token[0], token[len(token)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return token[1 : len(token)-1]
	}

	return token
}
