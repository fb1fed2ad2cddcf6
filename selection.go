/*
 * selection.go, part of mergetraj
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

package chem

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Select returns the sorted indexes of the atoms of top that match query.
//
// A query is a set of clauses joined by "and" and "or" ("and" binds tighter).
// Each clause is an optional "not", a field and one or more values separated by
// commas or spaces. Fields are: all, index (0-based position), id (serial number),
// resid, name, resname, segid and chain. Numeric fields take ranges like 3-10.
// field==value and field=value are also accepted, and values may be quoted, so
//
//	segid=="PROT" and name CA,CB
//
// is valid. A query that matches no atom is not an error.
func Select(top Atomer, query string) ([]int, error) {
	q := strings.NewReplacer("==", " ", "=", " ").Replace(query)
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		return nil, CError{msg: "Empty selection", deco: []string{"Select"}}
	}
	var ors []func(*Atom, int) bool
	var ands []func(*Atom, int) bool
	var current []string
	closeClause := func() error {
		m, err := parseClause(current)
		if err != nil {
			return err
		}
		ands = append(ands, m)
		current = current[:0]
		return nil
	}
	closeAnd := func() {
		group := ands
		ors = append(ors, func(at *Atom, i int) bool {
			for _, m := range group {
				if !m(at, i) {
					return false
				}
			}
			return true
		})
		ands = nil
	}
	for _, t := range tokens {
		switch strings.ToLower(t) {
		case "and":
			if err := closeClause(); err != nil {
				return nil, errDecorate(err, "Select")
			}
		case "or":
			if err := closeClause(); err != nil {
				return nil, errDecorate(err, "Select")
			}
			closeAnd()
		default:
			current = append(current, t)
		}
	}
	if err := closeClause(); err != nil {
		return nil, errDecorate(err, "Select")
	}
	closeAnd()
	ret := make([]int, 0)
	for i := 0; i < top.Len(); i++ {
		at := top.Atom(i)
		for _, m := range ors {
			if m(at, i) {
				ret = append(ret, i)
				break
			}
		}
	}
	sort.Ints(ret)
	return ret, nil
}

func parseClause(tokens []string) (func(*Atom, int) bool, error) {
	if len(tokens) == 0 {
		return nil, CError{msg: "Empty clause in selection", deco: []string{"parseClause"}}
	}
	negate := false
	if strings.EqualFold(tokens[0], "not") {
		negate = true
		tokens = tokens[1:]
		if len(tokens) == 0 {
			return nil, CError{msg: "'not' without a clause", deco: []string{"parseClause"}}
		}
	}
	key := strings.ToLower(tokens[0])
	values := make([]string, 0, len(tokens))
	for _, t := range tokens[1:] {
		for _, v := range strings.Split(t, ",") {
			v = strings.Trim(v, "\"'")
			if v != "" {
				values = append(values, v)
			}
		}
	}
	var m func(*Atom, int) bool
	switch key {
	case "all":
		if len(values) != 0 {
			return nil, CError{msg: "'all' takes no values", deco: []string{"parseClause"}}
		}
		m = func(*Atom, int) bool { return true }
	case "name", "resname", "segid", "chain":
		if len(values) == 0 {
			return nil, CError{msg: fmt.Sprintf("No values given for %s", key), deco: []string{"parseClause"}}
		}
		get := map[string]func(*Atom) string{
			"name":    func(a *Atom) string { return a.Name },
			"resname": func(a *Atom) string { return a.MolName },
			"segid":   func(a *Atom) string { return a.Segid },
			"chain":   func(a *Atom) string { return a.Chain },
		}[key]
		m = func(at *Atom, _ int) bool {
			s := get(at)
			for _, v := range values {
				if s == v {
					return true
				}
			}
			return false
		}
	case "index", "id", "resid":
		ranges, err := parseRanges(values)
		if err != nil {
			return nil, CError{msg: fmt.Sprintf("%s: %s", key, err.Error()), deco: []string{"parseClause"}}
		}
		get := map[string]func(*Atom, int) int{
			"index": func(_ *Atom, i int) int { return i },
			"id":    func(a *Atom, _ int) int { return a.ID },
			"resid": func(a *Atom, _ int) int { return a.MolID },
		}[key]
		m = func(at *Atom, i int) bool {
			n := get(at, i)
			for _, r := range ranges {
				if n >= r[0] && n <= r[1] {
					return true
				}
			}
			return false
		}
	default:
		return nil, CError{msg: fmt.Sprintf("Unknown selection field %q", tokens[0]), deco: []string{"parseClause"}}
	}
	if negate {
		inner := m
		m = func(at *Atom, i int) bool { return !inner(at, i) }
	}
	return m, nil
}

func parseRanges(values []string) ([][2]int, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no values given")
	}
	ret := make([][2]int, 0, len(values))
	for _, v := range values {
		lims := strings.SplitN(v, "-", 2)
		first, err := strconv.Atoi(lims[0])
		if err != nil {
			return nil, fmt.Errorf("bad number or range %q", v)
		}
		last := first
		if len(lims) == 2 {
			last, err = strconv.Atoi(lims[1])
			if err != nil || last < first {
				return nil, fmt.Errorf("bad range %q", v)
			}
		}
		ret = append(ret, [2]int{first, last})
	}
	return ret, nil
}
