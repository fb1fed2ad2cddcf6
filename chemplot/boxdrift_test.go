/*
 * boxdrift_test.go, part of mergetraj
 *
 * Copyright 2024 The mergetraj authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package chemplot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxDrift(t *testing.T) {
	dir := t.TempDir()
	frames := []int{0, 1, 2, 3}
	boxes := [][3]float64{{50, 50, 70}, {50.1, 49.9, 70.2}, {50.2, 49.8, 70.1}, {50.1, 49.9, 70}}
	for _, name := range []string{"drift.png", "drift.svg"} {
		out := filepath.Join(dir, name)
		require.NoError(t, BoxDrift(frames, boxes, "Box drift", out))
		info, err := os.Stat(out)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Error(t, BoxDrift(frames[:2], boxes, "", filepath.Join(dir, "bad.png")))
	assert.Error(t, BoxDrift(nil, nil, "", filepath.Join(dir, "empty.png")))
}
