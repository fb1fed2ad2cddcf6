/*
 * filesort.go, part of mergetraj
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

// Package filesort orders trajectory file names by a number embedded in them, so
// that lists produced by shell globs (where "traj10" comes before "traj2") are
// merged in simulation order.
package filesort

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultRegex matches the last number in a name.
const DefaultRegex = `(\d+)\D*$`

// ErrNoNumericKey is returned for names from which no number can be obtained.
var ErrNoNumericKey = errors.New("no numeric key in file name")

// KeyFunc returns the sort key of a file name.
type KeyFunc func(name string) (int, error)

// ScanfKey returns a KeyFunc that reads the key with fmt.Sscanf, using format, which must
// contain exactly one integer verb. Only the base name of each file is scanned.
func ScanfKey(format string) (KeyFunc, error) {
	if strings.Count(strings.ReplaceAll(format, "%%", ""), "%") != 1 {
		return nil, fmt.Errorf("scanf format %q must have exactly one verb", format)
	}
	return func(name string) (int, error) {
		var key int
		n, err := fmt.Sscanf(filepath.Base(name), format, &key)
		if err != nil || n != 1 {
			return 0, fmt.Errorf("%w: %s does not match %q", ErrNoNumericKey, name, format)
		}
		return key, nil
	}, nil
}

// RegexKey returns a KeyFunc that uses the first submatch of expr that is entirely
// made of digits. An empty expr means DefaultRegex.
func RegexKey(expr string) (KeyFunc, error) {
	if expr == "" {
		expr = DefaultRegex
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("bad regular expression: %w", err)
	}
	if re.NumSubexp() == 0 {
		return nil, fmt.Errorf("regular expression %q has no capture group", expr)
	}
	return func(name string) (int, error) {
		m := re.FindStringSubmatch(filepath.Base(name))
		for _, sub := range m[min(1, len(m)):] {
			if sub == "" || strings.Trim(sub, "0123456789") != "" {
				continue
			}
			key, err := strconv.Atoi(sub)
			if err != nil {
				break
			}
			return key, nil
		}
		return 0, fmt.Errorf("%w: %s does not match %q", ErrNoNumericKey, name, expr)
	}, nil
}

// Sort returns a copy of names sorted by increasing key. Names with the same key keep their
// order. If the key of any name can't be obtained, the error lists every such name.
func Sort(names []string, key KeyFunc) ([]string, error) {
	keys := make(map[string]int, len(names))
	var bad []error
	for _, n := range names {
		k, err := key(n)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		keys[n] = k
	}
	if len(bad) > 0 {
		return nil, errors.Join(bad...)
	}
	ret := append([]string(nil), names...)
	sort.SliceStable(ret, func(i, j int) bool { return keys[ret[i]] < keys[ret[j]] })
	return ret, nil
}
