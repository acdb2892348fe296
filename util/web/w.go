// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package web aids in writing HTTP servers.
package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WriteError will write a textual error response to the supplied ResponseWriter with the
// supplied HTTP StatusCode
func WriteError(w http.ResponseWriter, statusCode int, formatMsg string, params ...interface{}) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, formatMsg, params...)
	io.WriteString(w, "\n")
}

// WriteJSON writes val as an indented JSON response with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, val interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(val)
}

// Write is a helper function to write out a successful http response. It'll
// write the first non-nil val in the val list (so you can do things like
// web.Write(w, err, foo)) and have err returned if it was set. Strings are
// written as plain text, errors as a 500 response, and anything else as
// JSON. If every val is nil, the response is 204 No Content.
func Write(w http.ResponseWriter, vals ...interface{}) {
	for _, val := range vals {
		if val == nil {
			continue
		}
		switch tv := val.(type) {
		case string:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			io.WriteString(w, tv)
		case error:
			WriteError(w, http.StatusInternalServerError, "Unexpected error: %s", tv)
		default:
			WriteJSON(w, http.StatusOK, tv)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
