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
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIPCListenReplacesStaleSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "svc.ipc")
	require.NoError(t, os.WriteFile(sock, nil, 0600))

	l, err := ipcListen(sock)
	require.NoError(t, err)
	defer l.Close()

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	conn.Close()
}

func TestIPCListenRejectsOverlongPath(t *testing.T) {
	long := filepath.Join(t.TempDir(), strings.Repeat("a", maxPathSize))
	_, err := ipcListen(long)
	require.Error(t, err)
}
