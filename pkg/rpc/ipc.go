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

package rpc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/p2p/netutil"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"

	"github.com/cerc-io/fil-state-service/pkg/prom"
)

// sun_path is 108 bytes on Linux, see unix(7)
const maxPathSize = 108

// ipcListen creates a unix socket at endpoint, replacing any stale socket left
// by a previous run.
func ipcListen(endpoint string) (net.Listener, error) {
	if len(endpoint) > maxPathSize {
		return nil, fmt.Errorf("ipc endpoint %q exceeds the %d byte unix path limit", endpoint, maxPathSize)
	}

	if err := os.MkdirAll(filepath.Dir(endpoint), 0751); err != nil {
		return nil, err
	}
	os.Remove(endpoint)
	l, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(endpoint, 0600); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// ipcServe accepts socket connections until the listener closes, handing each
// session to the metrics-tracking middleware.
func ipcServe(srv *rpc.Server, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if netutil.IsTemporaryError(err) {
			log.WithError(err).Warn("temporary ipc accept error")
			continue
		}
		if err != nil {
			log.WithError(err).Debug("ipc listener closed")
			return
		}
		log.WithField("addr", conn.RemoteAddr()).Trace("accepted ipc connection")
		go prom.IPCMiddleware(srv, conn)
	}
}

// StartIPCEndpoint registers the service APIs and starts the unix-socket
// listener.
func StartIPCEndpoint(ipcEndpoint string, apis []rpc.API) (net.Listener, *rpc.Server, error) {
	handler := rpc.NewServer()
	for _, api := range apis {
		if err := handler.RegisterName(api.Namespace, api.Service); err != nil {
			return nil, nil, err
		}
		log.WithField("namespace", api.Namespace).Debug("IPC server registered")
	}
	listener, err := ipcListen(ipcEndpoint)
	if err != nil {
		return nil, nil, err
	}

	go ipcServe(handler, listener)
	return listener, handler, nil
}
