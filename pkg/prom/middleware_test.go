// VulcanizeDB
// Copyright © 2023 Vulcanize

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package prom

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRPCMethodName(t *testing.T) {
	newReq := func(body string) *http.Request {
		return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	}

	r := newReq(`{"jsonrpc":"2.0","method":"fil_actorState","params":["f0100"],"id":1}`)
	require.Equal(t, "fil_actorState", rpcMethodName(r))

	// the handler still sees the whole body after the peek
	got, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Contains(t, string(got), `"params":["f0100"]`)

	require.Equal(t, "batch", rpcMethodName(newReq(`[{"method":"fil_listActors"}]`)))
	require.Equal(t, "unknown", rpcMethodName(newReq("not json")))
	require.Equal(t, "unknown", rpcMethodName(newReq(`{"jsonrpc":"2.0"}`)))
}

func TestHTTPMiddlewareDisabledPassThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	// metrics off: the handler is returned untouched
	h := HTTPMiddleware(next)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	require.True(t, called)
}
