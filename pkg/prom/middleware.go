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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// maxMethodPeek bounds how much of a request body is buffered to extract the
// method name; single fil_ requests are far smaller.
const maxMethodPeek = 1 << 16

// HTTPMiddleware counts and times RPC requests, labeled by method so actor
// queries and validation runs show up as separate series.
func HTTPMiddleware(next http.Handler) http.Handler {
	if !metrics {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := rpcMethodName(r)
		httpCount.WithLabelValues(method).Inc()

		start := time.Now()
		next.ServeHTTP(w, r)
		httpDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	})
}

// rpcMethodName peeks the JSON-RPC method out of the request body, restoring
// the body for the handler. Batches and unparsable payloads fall into catch-all
// labels so the metric cardinality stays bounded.
func rpcMethodName(r *http.Request) string {
	if r.Body == nil {
		return "unknown"
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMethodPeek))
	if err != nil {
		return "unknown"
	}
	rest := r.Body
	r.Body = readCloser{io.MultiReader(bytes.NewReader(body), rest), rest}

	var req struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Method == "" {
		if len(body) > 0 && body[0] == '[' {
			return "batch"
		}
		return "unknown"
	}
	return req.Method
}

type readCloser struct {
	io.Reader
	io.Closer
}

// IPCMiddleware serves one unix-socket connection, tracking the number of
// open sessions.
func IPCMiddleware(server *rpc.Server, client rpc.Conn) {
	if metrics {
		ipcCount.Inc()
		defer ipcCount.Dec()
	}
	server.ServeCodec(rpc.NewCodec(client), 0)
}
