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

// Package rpc stands up the HTTP and unix-socket endpoints the actor-state
// query API is served over.
package rpc

import (
	"fmt"

	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cerc-io/fil-state-service/pkg/prom"
)

// StartHTTPEndpoint starts the HTTP RPC endpoint, exposing the named modules
// behind the metrics middleware.
func StartHTTPEndpoint(endpoint string, apis []rpc.API, modules []string, cors []string, vhosts []string, timeouts rpc.HTTPTimeouts) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := node.RegisterApis(apis, modules, srv); err != nil {
		return nil, errors.Wrap(err, "registering HTTP APIs")
	}
	handler := node.NewHTTPHandlerStack(srv, cors, vhosts, nil)

	_, addr, err := node.StartHTTPEndpoint(endpoint, timeouts, prom.HTTPMiddleware(handler))
	if err != nil {
		return nil, errors.Wrap(err, "starting HTTP RPC server")
	}
	log.WithField("url", fmt.Sprintf("http://%v/", addr)).Info("HTTP endpoint opened")
	return srv, nil
}
